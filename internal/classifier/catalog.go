// Package classifier screens listing photos with a zero-shot image scorer.
//
// A Catalog is the ordered set of text prompts the scorer ranks an image
// against. Prompts are partitioned into genuine real-estate imagery (valid)
// and content that must keep a submission off the site (rejectable). The
// scorer returns one probability per prompt, index-aligned with the catalog.
package classifier

import (
	"fmt"
	"strings"
)

// Class partitions catalog prompts
type Class int

const (
	ClassValid Class = iota
	ClassRejectable
)

func (c Class) String() string {
	switch c {
	case ClassValid:
		return "valid"
	case ClassRejectable:
		return "rejectable"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Category is one labeled prompt
type Category struct {
	Prompt string
	Class  Class
}

// Catalog is an immutable, ordered sequence of categories
type Catalog struct {
	categories []Category
	valid      []int
	rejectable []int
}

// NewCatalog builds a catalog from categories in the given order. Prompts
// must be non-empty and unique.
func NewCatalog(categories ...Category) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one category")
	}

	c := &Catalog{categories: make([]Category, len(categories))}
	seen := make(map[string]int, len(categories))
	for i, cat := range categories {
		prompt := strings.TrimSpace(cat.Prompt)
		if prompt == "" {
			return nil, fmt.Errorf("category %d has an empty prompt", i)
		}
		if prev, ok := seen[prompt]; ok {
			return nil, fmt.Errorf("duplicate prompt %q at indices %d and %d", prompt, prev, i)
		}
		seen[prompt] = i

		switch cat.Class {
		case ClassValid:
			c.valid = append(c.valid, i)
		case ClassRejectable:
			c.rejectable = append(c.rejectable, i)
		default:
			return nil, fmt.Errorf("category %q has unknown class %d", prompt, int(cat.Class))
		}
		c.categories[i] = Category{Prompt: prompt, Class: cat.Class}
	}
	return c, nil
}

// MustCatalog is NewCatalog for static tables; it panics on error
func MustCatalog(categories ...Category) *Catalog {
	c, err := NewCatalog(categories...)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of categories
func (c *Catalog) Len() int {
	return len(c.categories)
}

// At returns the category at index i
func (c *Catalog) At(i int) Category {
	return c.categories[i]
}

// Prompts returns every prompt in catalog order
func (c *Catalog) Prompts() []string {
	out := make([]string, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cat.Prompt
	}
	return out
}

// ValidIndices returns the indices of valid categories in catalog order
func (c *Catalog) ValidIndices() []int {
	return append([]int(nil), c.valid...)
}

// RejectableIndices returns the indices of rejectable categories in catalog order
func (c *Catalog) RejectableIndices() []int {
	return append([]int(nil), c.rejectable...)
}

var validRooms = []string{
	"a photo of a bedroom", "a photo of a living room", "a photo of a kitchen",
	"a photo of a bathroom", "a photo of a dining room", "a photo of a home office",
	"a photo of a hallway or corridor", "a photo of a staircase", "a photo of a balcony",
	"a photo of the exterior of a house", "a photo of an apartment building",
	"a photo of a backyard or garden", "a photo of a garage", "a photo of a laundry room",
	"a photo of a walk-in closet", "a photo of a floor plan",
}

var junkCategories = []string{
	"a screenshot of a website", "a blurry or low quality photo",
	"a photo of a car", "a meme", "a photo of food",
	"a photo of a person", "a person lying in bed",
	"a photo of a gun or weapon", "a firearm",
	"pills, medicine, or drugs", "medical supplies",
	"a messy room with trash", "a dark scary room",
	"a map", "a document", "a selfie", "type of adult content",
	"a photo of a vehicle", "a photo of a handgun or pistol",
	"a rifle or assault weapon", "a person holding a weapon",
	"bullets or ammunition on a surface", "a knife, blade, or sharp weapon",
	"military gear or explosives", "pills, capsules, or medicine bottles",
	"prescription drug packaging", "medical syringes or needles",
	"hospital equipment or medical supplies", "a person taking medicine",
	"illegal drug paraphernalia", "a photo of a human face",
	"a person standing in a room", "a child or baby",
	"a group of people", "a selfie in a mirror",
	"a photo containing people's faces", "adult content or nudity",
	"sexually suggestive pose", "exposed skin or underwear",
	"violent or gory imagery", "a screenshot of a phone or website",
	"a blurry, out of focus, or shaky photo", "a pet, dog, or cat",
	"a meme with text", "a photo of food or a meal",
	"a map or GPS navigation screen", "a document, contract, or paper with text",
	"a close up of an appliance like a toaster or kettle",
	"a trash can or pile of garbage", "a dark, scary, or unlit room",
	"a photo with a heavy watermark or logo",
}

var defaultCatalog = func() *Catalog {
	cats := make([]Category, 0, len(validRooms)+len(junkCategories))
	for _, p := range validRooms {
		cats = append(cats, Category{Prompt: p, Class: ClassValid})
	}
	for _, p := range junkCategories {
		cats = append(cats, Category{Prompt: p, Class: ClassRejectable})
	}
	return MustCatalog(cats...)
}()

// DefaultCatalog returns the room and junk prompts used in production:
// all valid rooms first, then every rejectable category.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}
