package gaijin

import (
	"net/url"
	"packwatch/internal/catalog"
	"packwatch/pkg/htmlutil"
	"slices"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

const (
	selector_item          = "div.showcase__item.product-widget.js-cart__cart-item"
	selector_title         = "div.product-widget-description__title"
	selector_link          = "a.product-widget__link"
	selector_price_promo   = "span.showcase-item-price__new"
	selector_price_default = "span.showcase-item-price__default"
	selector_pager         = "a.pager__page"
)

func firstText(sel *goquery.Selection, selector string) string {
	found := sel.Find(selector)
	if found.Length() == 0 {
		return ""
	}
	return htmlutil.CleanText(htmlutil.GetText(found.Get(0)))
}

func parseEntries(doc *goquery.Document, base *url.URL) []catalog.Entry {
	var entries []catalog.Entry
	doc.Find(selector_item).Each(func(_ int, item *goquery.Selection) {
		price := firstText(item, selector_price_promo)
		if price == "" {
			price = firstText(item, selector_price_default)
		}
		if price == "" {
			return
		}
		name := firstText(item, selector_title)
		if name == "" {
			return
		}

		href, _ := item.Find(selector_link).First().Attr("href")
		entries = append(entries, catalog.Entry{
			Name:  name,
			Link:  htmlutil.ResolveHref(base, href),
			Price: price,
		})
	})
	return entries
}

// parsePager returns the additional page numbers linked from the pager,
// ascending and without page 1.
func parsePager(doc *goquery.Document) []int {
	var pages []int
	doc.Find(selector_pager).Each(func(_ int, a *goquery.Selection) {
		n, err := strconv.Atoi(htmlutil.CleanText(a.Text()))
		if err != nil || n <= 1 {
			return
		}
		if slices.Contains(pages, n) {
			return
		}
		pages = append(pages, n)
	})
	slices.Sort(pages)
	return pages
}
