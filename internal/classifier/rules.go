package classifier

import (
	"fmt"
	"strings"
)

// Category is an insurance goods category.
type Category string

const (
	CategoryMedicalDevices Category = "Medical Devices"
	CategorySkincare       Category = "Skincare Products"
	CategoryOralSupplement Category = "Oral Supplements"
	CategoryPharmaceutical Category = "Pharmaceutical Products"
	CategoryUnknown        Category = "Unknown"
)

var categoryAliases = map[string]Category{
	"medical devices":         CategoryMedicalDevices,
	"medical_devices":         CategoryMedicalDevices,
	"skincare products":       CategorySkincare,
	"skincare_products":       CategorySkincare,
	"skincare":                CategorySkincare,
	"oral supplements":        CategoryOralSupplement,
	"oral_supplements":        CategoryOralSupplement,
	"pharmaceutical products": CategoryPharmaceutical,
	"pharmaceutical":          CategoryPharmaceutical,
	"unknown":                 CategoryUnknown,
}

// ParseCategory accepts a display name or a snake_case key.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// VerbatimLabel is a pre-classified phrase printed on source documents.
type VerbatimLabel struct {
	Phrase     string
	Categories []Category
}

// CompoundRule pairs a brand token with a product-type token.
type CompoundRule struct {
	Pattern    string
	Categories []Category
}

// BrandRule maps a lower-case brand substring to its category.
type BrandRule struct {
	Brand    string
	Category Category
}

// KeywordRule is an ordered list of patterns for one category.
type KeywordRule struct {
	Category Category
	Patterns []string
}

// Rules is the editable dictionary data the tiers run against.
type Rules struct {
	Verbatim []VerbatimLabel
	Compound []CompoundRule
	Brands   []BrandRule
	Keywords []KeywordRule
}

// DefaultRules returns the built-in dictionaries.
func DefaultRules() Rules {
	return Rules{
		Verbatim: []VerbatimLabel{
			{"skincare products & oral supplements", []Category{CategorySkincare, CategoryOralSupplement}},
			{"skincare products and oral supplements", []Category{CategorySkincare, CategoryOralSupplement}},
			{"oral supplements & skincare products", []Category{CategoryOralSupplement, CategorySkincare}},
			{"skincare products", []Category{CategorySkincare}},
			{"oral supplements", []Category{CategoryOralSupplement}},
			{"oral supplement", []Category{CategoryOralSupplement}},
			{"medical devices", []Category{CategoryMedicalDevices}},
			{"medical device", []Category{CategoryMedicalDevices}},
			{"medical devices & skincare products", []Category{CategoryMedicalDevices, CategorySkincare}},
			{"skincare products & medical devices", []Category{CategorySkincare, CategoryMedicalDevices}},
			{"pharmaceutical products", []Category{CategoryPharmaceutical}},
		},
		Compound: []CompoundRule{
			{`profhilo\s+haenkenium\s+cream`, []Category{CategorySkincare}},
			{`profhilo.*syringe`, []Category{CategoryMedicalDevices}},
		},
		Brands: []BrandRule{
			{"profhilo", CategoryMedicalDevices},
			{"viscoderm", CategoryMedicalDevices},
			{"nucleofill", CategoryMedicalDevices},
			{"aliaxin", CategoryMedicalDevices},
			{"belotero", CategoryMedicalDevices},
			{"radiesse", CategoryMedicalDevices},
			{"juvederm", CategoryMedicalDevices},
			{"restylane", CategoryMedicalDevices},
			{"teosyal", CategoryMedicalDevices},
			{"sculptra", CategoryMedicalDevices},
			{"ellanse", CategoryMedicalDevices},
			{"sunekos", CategoryMedicalDevices},
			{"jalupro", CategoryMedicalDevices},
			{"lumi eyes", CategoryMedicalDevices},
			{"ejal", CategoryMedicalDevices},
			{"xela rederm", CategoryMedicalDevices},

			{"haenkenium", CategorySkincare},
			{"heliocare", CategorySkincare},
			{"endocare", CategorySkincare},
			{"neostrata", CategorySkincare},
			{"isdin", CategorySkincare},
			{"skinceuticals", CategorySkincare},
			{"obagi", CategorySkincare},
			{"zo skin health", CategorySkincare},
			{"dermaceutic", CategorySkincare},
			{"biopelle", CategorySkincare},

			{"imedeen", CategoryOralSupplement},
			{"perfectil", CategoryOralSupplement},
			{"nutrafol", CategoryOralSupplement},
			{"viviscal", CategoryOralSupplement},
			{"collagen supplements", CategoryOralSupplement},
		},
		Keywords: []KeywordRule{
			{CategoryMedicalDevices, []string{
				`\bsyringe\b`,
				`\binjectable\b`,
				`\bfiller\b`,
				`\bimplant\b`,
				`\b\d+mg\b.*\bml\b`,
				`\bhyaluronic acid\b`,
				`\bbiorevital`,
				`\bskin booster\b`,
				`\bmesotherapy\b`,
				`\bpeel\b`,
				`\blaser\b`,
				`\bdevice\b`,
				`\bsterile\b`,
				`\bmedical\b`,
			}},
			{CategorySkincare, []string{
				`\bcream\b`,
				`\bserum\b`,
				`\blotion\b`,
				`\bmoisturiz`,
				`\bcleanser\b`,
				`\btoner\b`,
				`\bmask\b`,
				`\bsunscreen\b`,
				`\bspf\b`,
				`\banti.?aging\b`,
				`\bskincare\b`,
				`\bskin\s*care\b`,
				`\btopical\b`,
				`\bcosmetic\b`,
			}},
			{CategoryOralSupplement, []string{
				`\bsupplement\b`,
				`\bcapsule\b`,
				`\btablet\b`,
				`\bvitamin\b`,
				`\bcollagen\b.*\boral\b`,
				`\boral\b.*\bcollagen\b`,
				`\bnutrition\b`,
				`\bdietary\b`,
				`\bpill\b`,
				`\bsoftgel\b`,
			}},
			{CategoryPharmaceutical, []string{
				`\bdrug\b`,
				`\bpharmaceutical\b`,
				`\bmedicine\b`,
				`\bprescription\b`,
			}},
		},
	}
}
