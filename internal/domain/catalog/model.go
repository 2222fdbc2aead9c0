// Package catalog holds the fixed vocabularies used by materials and client
// services: material categories, unit types and service types.
package catalog

type Category string

const (
	CategoryBaseCoat    Category = "base_coat"
	CategoryColorPolish Category = "color_polish"
	CategoryTopCoat     Category = "top_coat"
	CategoryNailArt     Category = "nail_art"
	CategoryTools       Category = "tools"
	CategoryDecorations Category = "decorations"
	CategorySupplies    Category = "supplies"
	CategoryOther       Category = "other"
)

var Categories = []Category{
	CategoryBaseCoat, CategoryColorPolish, CategoryTopCoat, CategoryNailArt,
	CategoryTools, CategoryDecorations, CategorySupplies, CategoryOther,
}

type Unit string

const (
	UnitML      Unit = "ml"
	UnitPieces  Unit = "pieces"
	UnitBottles Unit = "bottles"
	UnitGrams   Unit = "grams"
	UnitSets    Unit = "sets"
	UnitTubes   Unit = "tubes"
	UnitTips    Unit = "tips"
)

var Units = []Unit{UnitML, UnitPieces, UnitBottles, UnitGrams, UnitSets, UnitTubes, UnitTips}

var ServiceTypes = []string{
	"Basic Manicure",
	"Gel Manicure",
	"Basic Pedicure",
	"Gel Pedicure",
	"Nail Art",
	"Polish Change",
	"French Manicure",
	"Acrylic Nails",
	"Nail Repair",
	"Other",
}

// ValidCategory пустая категория допустима.
func ValidCategory(c Category) bool {
	if c == "" {
		return true
	}
	for _, x := range Categories {
		if x == c {
			return true
		}
	}
	return false
}

// ValidServiceType пустой тип визита допустим.
func ValidServiceType(s string) bool {
	if s == "" {
		return true
	}
	for _, x := range ServiceTypes {
		if x == s {
			return true
		}
	}
	return false
}

func ValidUnit(u Unit) bool {
	for _, x := range Units {
		if x == u {
			return true
		}
	}
	return false
}
