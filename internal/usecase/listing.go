package usecase

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/ecoshop/ecoshop/internal/domain"
)

var (
	// Shopee listings end in "-i.<shopId>.<itemId>"
	shopeeItemRegex = regexp.MustCompile(`i\.(\d+)\.(\d+)(?:$|[/?#])`)
	// newer Shopee links use /product/<shopId>/<itemId>
	shopeeProductRegex = regexp.MustCompile(`^/product/(\d+)/(\d+)/?$`)
)

// ListingKeyFor derives the stable listing identity of a product.
// Shopee URLs map to "<shop>_<item>" on the site's registrable domain; any other
// URL uses host and path without query or fragment. Without a usable URL the
// key falls back to the normalized brand and product name.
func ListingKeyFor(info domain.ProductInfo) (domain.ListingKey, error) {
	if strings.TrimSpace(info.URL) != "" {
		if key, err := listingKeyFromURL(info.URL); err == nil {
			return key, nil
		}
	}

	brand := normalizeForCacheKey(info.Brand)
	name := normalizeForCacheKey(CleanProductName(info.Name))
	if brand == "" && name == "" {
		return domain.ListingKey{}, fmt.Errorf("%w: brand or name is required", domain.ErrInvalidRequest)
	}
	return domain.ListingKey{SourceSite: "unknown", ListingID: brand + "|" + name}, nil
}

func listingKeyFromURL(rawURL string) (domain.ListingKey, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return domain.ListingKey{}, err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return domain.ListingKey{}, fmt.Errorf("URL %q has no host", rawURL)
	}

	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		site = host
	}

	if strings.Contains(site, "shopee") {
		if m := shopeeItemRegex.FindStringSubmatch(u.Path); m != nil {
			return domain.ListingKey{SourceSite: site, ListingID: m[1] + "_" + m[2]}, nil
		}
		if m := shopeeProductRegex.FindStringSubmatch(u.Path); m != nil {
			return domain.ListingKey{SourceSite: site, ListingID: m[1] + "_" + m[2]}, nil
		}
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}
	return domain.ListingKey{SourceSite: site, ListingID: host + path}, nil
}
