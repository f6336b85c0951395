package mockbackend

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/d60-Lab/order-dashboard/internal/menu"
	"github.com/d60-Lab/order-dashboard/internal/model"
)

var (
	customers = []string{"王小明", "陳小華", "林小美", "張小強", "李小雯", "黃小龍", "劉小婷"}
	addresses = []string{"", "台北市信義區忠孝東路五段100號", "台北市大安區仁愛路四段50號", ""}
	genStatus = []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusConfirmed,
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusCompleted,
	}
)

// Generate 生成过去 30 天内的 n 笔测试订单 (按创建时间倒序)
func Generate(n int, rng *rand.Rand, now time.Time) []model.Order {
	items := menu.DefaultItems
	orders := make([]model.Order, 0, n)
	for i := 0; i < n; i++ {
		day := now.AddDate(0, 0, -rng.Intn(30))
		created := time.Date(day.Year(), day.Month(), day.Day(), 10+rng.Intn(10), rng.Intn(60), 0, 0, now.Location())

		count := rng.Intn(4) + 1
		lines := make([]model.OrderItem, 0, count)
		var total float64
		for j := 0; j < count; j++ {
			m := items[rng.Intn(len(items))]
			qty := rng.Intn(3) + 1
			lines = append(lines, model.OrderItem{Name: m.Name, Price: m.Price, Quantity: qty, Icon: m.Icon})
			total += m.Price * float64(qty)
		}

		status := genStatus[rng.Intn(len(genStatus))]
		var notes string
		switch r := rng.Float64(); {
		case r > 0.7:
			notes = "不要加辣"
		case r > 0.35:
			notes = "需要餐具"
		}

		o := model.Order{
			OrderID:         fmt.Sprintf("ORD%03d", i),
			CustomerName:    customers[rng.Intn(len(customers))],
			CustomerPhone:   fmt.Sprintf("09%08d", rng.Intn(100000000)),
			Items:           lines,
			TotalAmount:     total,
			Status:          status,
			PickupTime:      created.Add(30 * time.Minute),
			DeliveryAddress: addresses[rng.Intn(len(addresses))],
			Notes:           notes,
			CreatedAt:       created,
		}
		if status != model.OrderStatusPending {
			t := created.Add(5 * time.Minute)
			o.ConfirmedAt = &t
		}
		orders = append(orders, o)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}
