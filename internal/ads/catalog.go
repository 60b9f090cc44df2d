package ads

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/your-org/crowdsense/internal/models"
)

var demoAssets = map[models.Audience][]models.AdAsset{
	models.AudienceMale: {
		{ID: "MALE_001", MediaPath: "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=800", MediaType: models.MediaImage,
			DisplayName: "Men's Premium Shoes Collection", Description: "Sports shoes, formal shoes, sneakers - Up to 50% OFF"},
		{ID: "MALE_002", MediaPath: "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=800", MediaType: models.MediaImage,
			DisplayName: "Men's Fashion Pants & Jeans", Description: "Denim, chinos, formal trousers - Latest styles"},
		{ID: "MALE_003", MediaPath: "https://images.unsplash.com/photo-1523381294911-8d3cead13475?fm=jpg&q=60&w=3000", MediaType: models.MediaImage,
			DisplayName: "Men's Shirts & T-Shirts", Description: "Casual shirts, formal shirts, polo tees - All sizes available"},
		{ID: "MALE_004", MediaPath: "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=800", MediaType: models.MediaImage,
			DisplayName: "Men's Watches & Accessories", Description: "Premium watches, belts, wallets - Luxury collection"},
	},
	models.AudienceFemale: {
		{ID: "FEMALE_001", MediaPath: "https://images.unsplash.com/photo-1548036328-c9fa89d128fa?w=800", MediaType: models.MediaImage,
			DisplayName: "Women's Handbags & Purses", Description: "Designer bags, clutches, totes - Fashion collection"},
		{ID: "FEMALE_002", MediaPath: "https://images.unsplash.com/photo-1515562141207-7a88fb7ce338?w=800", MediaType: models.MediaImage,
			DisplayName: "Women's Jewelry Collection", Description: "Necklaces, earrings, bracelets - Elegant pieces"},
		{ID: "FEMALE_003", MediaPath: "https://images.unsplash.com/photo-1543163521-1bf539c55dd2?w=800", MediaType: models.MediaImage,
			DisplayName: "Women's Footwear", Description: "Heels, flats, sandals, boots - Latest trends"},
		{ID: "FEMALE_004", MediaPath: "https://images.unsplash.com/photo-1596462502278-27bfdc403348?w=800", MediaType: models.MediaImage,
			DisplayName: "Beauty & Cosmetics", Description: "Makeup, skincare, perfumes - Premium brands"},
		{ID: "FEMALE_005", MediaPath: "https://images.unsplash.com/photo-1594633312681-425c7b97ccd1?w=800", MediaType: models.MediaImage,
			DisplayName: "Women's Fashion Accessories", Description: "Scarves, sunglasses, fashion jewelry - Complete collection"},
	},
	models.AudienceNeutral: {
		{ID: "NEUTRAL_001", MediaPath: "https://images.unsplash.com/photo-1557683316-973673baf926?w=800", MediaType: models.MediaImage,
			DisplayName: "Mall Special Promotions", Description: "Weekend sales, special discounts - Shop now!"},
		{ID: "NEUTRAL_002", MediaPath: "https://images.unsplash.com/photo-1441986300917-64674bd600d8?w=800", MediaType: models.MediaImage,
			DisplayName: "Food Court Offers", Description: "Special meals, discounts on dining - Visit now!"},
	},
}

// DemoAssets returns a copy of the built-in catalog for one audience.
func DemoAssets(aud models.Audience) []models.AdAsset {
	return append([]models.AdAsset(nil), demoAssets[aud]...)
}

var mediaTypes = map[string]models.MediaType{
	".mp4":  models.MediaVideo,
	".webm": models.MediaVideo,
	".jpg":  models.MediaImage,
	".jpeg": models.MediaImage,
	".png":  models.MediaImage,
	".gif":  models.MediaImage,
}

// Inventory is a set of assets per audience.
type Inventory map[models.Audience][]models.AdAsset

// LoadLocalInventory scans <dir>/{male,female,neutral}. A missing dir is
// created with empty subfolders and yields an empty inventory.
func LoadLocalInventory(dir string) (Inventory, error) {
	inv := make(Inventory, len(models.Audiences))

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		for _, aud := range models.Audiences {
			if err := os.MkdirAll(filepath.Join(dir, string(aud)), 0o755); err != nil {
				return inv, fmt.Errorf("create inventory dir: %w", err)
			}
		}
		return inv, nil
	} else if err != nil {
		return inv, fmt.Errorf("stat inventory dir: %w", err)
	}

	for _, aud := range models.Audiences {
		entries, err := os.ReadDir(filepath.Join(dir, string(aud)))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return inv, fmt.Errorf("read %s inventory: %w", aud, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			asset, ok := assetFromFile(aud, e.Name(), "/static/ads/"+string(aud)+"/"+e.Name())
			if ok {
				inv[aud] = append(inv[aud], asset)
			}
		}
	}
	return inv, nil
}

// ObjectLister lists object keys under a prefix in the media store.
type ObjectLister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// LoadObjectInventory reads <prefix><audience>/<file> objects. Assets are
// served through the /media proxy.
func LoadObjectInventory(ctx context.Context, lister ObjectLister, prefix string) (Inventory, error) {
	inv := make(Inventory, len(models.Audiences))
	for _, aud := range models.Audiences {
		keys, err := lister.ListKeys(ctx, prefix+string(aud)+"/")
		if err != nil {
			return inv, fmt.Errorf("list %s objects: %w", aud, err)
		}
		sort.Strings(keys)
		for _, key := range keys {
			asset, ok := assetFromFile(aud, path.Base(key), "/media/"+key)
			if ok {
				inv[aud] = append(inv[aud], asset)
			}
		}
	}
	return inv, nil
}

func assetFromFile(aud models.Audience, name, mediaPath string) (models.AdAsset, bool) {
	if strings.HasPrefix(name, ".") {
		return models.AdAsset{}, false
	}
	ext := strings.ToLower(filepath.Ext(name))
	mt, ok := mediaTypes[ext]
	if !ok {
		return models.AdAsset{}, false
	}

	id := strings.NewReplacer(".", "_", " ", "_").Replace(name)
	return models.AdAsset{
		ID:          strings.ToUpper(string(aud)) + "_" + strings.ToUpper(id),
		MediaPath:   mediaPath,
		MediaType:   mt,
		DisplayName: displayName(strings.TrimSuffix(name, filepath.Ext(name))),
	}, true
}

var titler = cases.Title(language.Und)

func displayName(base string) string {
	return titler.String(strings.ReplaceAll(base, "_", " "))
}

// Catalog holds the assets available per audience. Buckets with no assets
// fall back to the demo catalog.
type Catalog struct {
	mu      sync.RWMutex
	buckets Inventory
}

// NewCatalog merges the given inventories in order. Duplicate ids keep the
// first occurrence.
func NewCatalog(sources ...Inventory) *Catalog {
	c := &Catalog{}
	c.Replace(sources...)
	return c
}

// Replace swaps the catalog contents.
func (c *Catalog) Replace(sources ...Inventory) {
	buckets := make(Inventory, len(models.Audiences))
	for _, aud := range models.Audiences {
		seen := make(map[string]bool)
		for _, src := range sources {
			for _, a := range src[aud] {
				if a.ID != "" && seen[a.ID] {
					continue
				}
				seen[a.ID] = true
				buckets[aud] = append(buckets[aud], a)
			}
		}
		if len(buckets[aud]) == 0 {
			buckets[aud] = DemoAssets(aud)
		}
	}

	c.mu.Lock()
	c.buckets = buckets
	c.mu.Unlock()
}

// Size returns the number of assets available for aud.
func (c *Catalog) Size(aud models.Audience) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buckets[aud])
}

// Assets returns a copy of the bucket for aud.
func (c *Catalog) Assets(aud models.Audience) []models.AdAsset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.AdAsset(nil), c.buckets[aud]...)
}

// pick samples uniformly from aud, then neutral, then the neutral demo set.
func (c *Catalog) pick(aud models.Audience, rng *rand.Rand) models.AdAsset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := c.buckets[aud]
	if len(list) == 0 {
		list = c.buckets[models.AudienceNeutral]
	}
	if len(list) == 0 {
		list = demoAssets[models.AudienceNeutral]
	}
	return list[rng.IntN(len(list))]
}
