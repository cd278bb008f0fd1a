package expiry

import (
	"sort"
	"strings"
)

// DefaultShelfLifeDays is used for items missing from the table
const DefaultShelfLifeDays = 7

type shelfLife struct {
	days     int
	category string
}

// shelfLives holds typical refrigerated shelf life in days
var shelfLives = map[string]shelfLife{
	// dairy
	"milk":           {7, "dairy"},
	"eggs":           {21, "dairy"},
	"egg":            {21, "dairy"},
	"cheese":         {14, "dairy"},
	"yogurt":         {10, "dairy"},
	"butter":         {30, "dairy"},
	"cream":          {7, "dairy"},
	"sour cream":     {14, "dairy"},
	"cream cheese":   {14, "dairy"},
	"cottage cheese": {7, "dairy"},

	// produce
	"apple":        {30, "produce"},
	"banana":       {5, "produce"},
	"orange":       {21, "produce"},
	"lemon":        {21, "produce"},
	"lime":         {21, "produce"},
	"strawberries": {5, "produce"},
	"strawberry":   {5, "produce"},
	"berries":      {5, "produce"},
	"blueberries":  {7, "produce"},
	"grapes":       {7, "produce"},
	"lettuce":      {7, "produce"},
	"spinach":      {5, "produce"},
	"tomato":       {7, "produce"},
	"carrot":       {21, "produce"},
	"carrots":      {21, "produce"},
	"broccoli":     {5, "produce"},
	"cucumber":     {7, "produce"},
	"bell pepper":  {10, "produce"},
	"onion":        {30, "produce"},
	"celery":       {14, "produce"},
	"mushrooms":    {5, "produce"},
	"avocado":      {4, "produce"},
	"zucchini":     {7, "produce"},
	"cabbage":      {30, "produce"},

	// meat
	"chicken":     {2, "meat"},
	"ground beef": {2, "meat"},
	"beef":        {3, "meat"},
	"steak":       {4, "meat"},
	"pork":        {3, "meat"},
	"bacon":       {7, "meat"},
	"ham":         {5, "meat"},
	"turkey":      {2, "meat"},
	"sausage":     {2, "meat"},
	"hot dog":     {14, "meat"},

	// seafood
	"salmon": {2, "seafood"},
	"fish":   {2, "seafood"},
	"shrimp": {2, "seafood"},
	"tuna":   {2, "seafood"},

	// bakery
	"bread":     {7, "bakery"},
	"tortillas": {14, "bakery"},
	"bagels":    {7, "bakery"},
	"cake":      {4, "bakery"},
	"donut":     {2, "bakery"},

	// prepared
	"leftovers": {4, "prepared"},
	"pizza":     {4, "prepared"},
	"sandwich":  {2, "prepared"},
	"soup":      {4, "prepared"},
	"hummus":    {7, "prepared"},
	"salsa":     {7, "prepared"},
	"tofu":      {5, "prepared"},

	// beverage
	"orange juice": {7, "beverage"},
	"juice":        {7, "beverage"},
	"soda":         {180, "beverage"},
	"wine":         {5, "beverage"},

	// pantry
	"ketchup":        {180, "pantry"},
	"mustard":        {365, "pantry"},
	"mayonnaise":     {60, "pantry"},
	"jam":            {180, "pantry"},
	"pickles":        {90, "pantry"},
	"salad dressing": {60, "pantry"},
}

// shelfLifeKeys lists table keys longest first so "ground beef" beats "beef"
var shelfLifeKeys = func() []string {
	keys := make([]string, 0, len(shelfLives))
	for k := range shelfLives {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// lookupShelfLife matches an item name exactly, then by any whole-word table entry it contains
func lookupShelfLife(name string) (shelfLife, bool) {
	name = strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if life, ok := shelfLives[name]; ok {
		return life, true
	}

	padded := " " + name + " "
	for _, key := range shelfLifeKeys {
		if strings.Contains(padded, " "+key+" ") {
			return shelfLives[key], true
		}
	}
	return shelfLife{}, false
}

// ShelfLifeDays returns the table shelf life for name, or DefaultShelfLifeDays
func ShelfLifeDays(name string) int {
	if life, ok := lookupShelfLife(name); ok {
		return life.days
	}
	return DefaultShelfLifeDays
}

// Category returns the food category for name, or "" when unknown
func Category(name string) string {
	life, _ := lookupShelfLife(name)
	return life.category
}
