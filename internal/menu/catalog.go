// Package menu holds the reference menu used to rebuild line items when the
// backend sends them as a pre-formatted string.
package menu

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/d60-Lab/order-dashboard/internal/model"
)

// UnknownIcon marks items whose name is not on the menu.
const UnknownIcon = "❓"

// DefaultItems 预设菜单
var DefaultItems = []model.MenuItem{
	{Name: "滷肉飯", Price: 35, Icon: "🍚"},
	{Name: "雞肉飯", Price: 40, Icon: "🍗"},
	{Name: "蚵仔煎", Price: 65, Icon: "🍳"},
	{Name: "大腸麵線", Price: 50, Icon: "🍜"},
	{Name: "珍珠奶茶", Price: 45, Icon: "🥤"},
	{Name: "鹽酥雞", Price: 60, Icon: "🍖"},
	{Name: "甜不辣", Price: 40, Icon: "🍢"},
	{Name: "肉圓", Price: 45, Icon: "🥟"},
	{Name: "臭豆腐", Price: 55, Icon: "🧆"},
	{Name: "牛肉麵", Price: 120, Icon: "🍲"},
}

// Catalog is an immutable name -> menu item table.
type Catalog struct {
	items []model.MenuItem
	index map[string]model.MenuItem
}

func NewCatalog(items []model.MenuItem) *Catalog {
	c := &Catalog{
		items: make([]model.MenuItem, 0, len(items)),
		index: make(map[string]model.MenuItem, len(items)),
	}
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		it.Name = name
		if _, dup := c.index[name]; !dup {
			c.items = append(c.items, it)
		}
		c.index[name] = it
	}
	return c
}

// Default 返回预设菜单
func Default() *Catalog { return NewCatalog(DefaultItems) }

func (c *Catalog) Lookup(name string) (model.MenuItem, bool) {
	it, ok := c.index[strings.TrimSpace(name)]
	return it, ok
}

// Items returns the menu in declaration order.
func (c *Catalog) Items() []model.MenuItem {
	out := make([]model.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// "滷肉飯 x2", "雞肉飯×1", "肉圓 * 3"
var segmentRe = regexp.MustCompile(`^(.*?)\s*[xX×*]\s*(\d+)$`)

// ParseItems rebuilds line items from a comma-joined string such as
// "滷肉飯 x2, 雞肉飯 x1". It never fails: a missing or bad quantity counts as 1
// and names missing from the menu become zero-price placeholders.
func (c *Catalog) ParseItems(s string) []model.OrderItem {
	s = strings.ReplaceAll(s, "，", ",")
	s = strings.ReplaceAll(s, "\n", ",")

	var items []model.OrderItem
	for _, seg := range strings.Split(s, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, qty := seg, 1
		if m := segmentRe.FindStringSubmatch(seg); m != nil {
			name = strings.TrimSpace(m[1])
			if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
				qty = n
			}
		}
		if name == "" {
			continue
		}
		items = append(items, c.resolve(name, qty))
	}
	return items
}

func (c *Catalog) resolve(name string, qty int) model.OrderItem {
	if it, ok := c.index[name]; ok {
		return model.OrderItem{Name: it.Name, Price: it.Price, Quantity: qty, Icon: it.Icon}
	}
	return model.OrderItem{Name: name, Price: 0, Quantity: qty, Icon: UnknownIcon}
}

// FormatItems 生成 "名称 xN, ..." 字符串
func FormatItems(items []model.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Name+" x"+strconv.Itoa(it.Quantity))
	}
	return strings.Join(parts, ", ")
}
