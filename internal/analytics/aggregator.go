package analytics

import (
	"log"
	"time"

	"go-pos-ledger/internal/models"

	"gorm.io/gorm"
)

// Service computes read-only rollups from committed ledger state. These
// feed dashboards, not bills, so every failure degrades to zero values
// instead of failing the caller.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Summary is the headline revenue card for a date window.
type Summary struct {
	OrderCount   int64   `json:"order_count"`
	Revenue      float64 `json:"revenue"`
	Profit       float64 `json:"profit"`
	AverageOrder float64 `json:"average_order"`
}

func (s *Service) Summary(start, end time.Time) Summary {
	var out Summary

	if err := s.DB.Model(&models.Order{}).
		Where("created_at BETWEEN ? AND ?", start, end).
		Count(&out.OrderCount).Error; err != nil {
		log.Printf("⚠️ Analytics summary count failed: %v", err)
		return Summary{}
	}
	// COALESCE keeps an empty window at 0 instead of NULL
	if err := s.DB.Model(&models.Order{}).
		Where("created_at BETWEEN ? AND ?", start, end).
		Select("COALESCE(SUM(total), 0)").Scan(&out.Revenue).Error; err != nil {
		log.Printf("⚠️ Analytics revenue failed: %v", err)
		return Summary{}
	}
	if err := s.DB.Model(&models.Order{}).
		Where("created_at BETWEEN ? AND ?", start, end).
		Select("COALESCE(SUM(profit_total), 0)").Scan(&out.Profit).Error; err != nil {
		log.Printf("⚠️ Analytics profit failed: %v", err)
		return Summary{}
	}
	if out.OrderCount > 0 {
		out.AverageOrder = out.Revenue / float64(out.OrderCount)
	}
	return out
}

// StatusCount is one bar of the status histogram.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// StatusHistogram groups all orders by delivery status.
func (s *Service) StatusHistogram() []StatusCount {
	var rows []StatusCount
	err := s.DB.Model(&models.Order{}).
		Select("delivery_status as status, COUNT(*) as count").
		Group("delivery_status").
		Order("delivery_status").
		Scan(&rows).Error
	if err != nil {
		log.Printf("⚠️ Analytics histogram failed: %v", err)
		return nil
	}
	return rows
}

// TrendPoint is one bucket of the revenue trend series.
type TrendPoint struct {
	Bucket     time.Time `json:"bucket"`
	OrderCount int       `json:"order_count"`
	Revenue    float64   `json:"revenue"`
}

// Trends buckets orders in the window by creation time. Bucketing runs
// in Go so the series is portable across stores.
func (s *Service) Trends(start, end time.Time, bucket time.Duration) []TrendPoint {
	if bucket <= 0 {
		bucket = time.Hour
	}

	var orders []models.Order
	err := s.DB.Select("created_at", "total").
		Where("created_at BETWEEN ? AND ?", start, end).
		Order("created_at").
		Find(&orders).Error
	if err != nil {
		log.Printf("⚠️ Analytics trends failed: %v", err)
		return nil
	}

	grouped := make(map[time.Time]*TrendPoint)
	var keys []time.Time
	for _, o := range orders {
		key := o.CreatedAt.Truncate(bucket)
		point, ok := grouped[key]
		if !ok {
			point = &TrendPoint{Bucket: key}
			grouped[key] = point
			keys = append(keys, key)
		}
		point.OrderCount++
		total, _ := o.Total.Float64()
		point.Revenue += total
	}

	out := make([]TrendPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, *grouped[k])
	}
	return out
}

// AveragePrepTime is the mean created→fully-delivered span over the
// window. Orders never delivered do not count.
func (s *Service) AveragePrepTime(start, end time.Time) time.Duration {
	var orders []models.Order
	err := s.DB.Select("created_at", "delivered_at").
		Where("created_at BETWEEN ? AND ? AND delivered_at IS NOT NULL", start, end).
		Find(&orders).Error
	if err != nil {
		log.Printf("⚠️ Analytics prep time failed: %v", err)
		return 0
	}
	if len(orders) == 0 {
		return 0
	}

	var sum time.Duration
	for _, o := range orders {
		sum += o.DeliveredAt.Sub(o.CreatedAt)
	}
	return sum / time.Duration(len(orders))
}

// Backlog is the kitchen queue alerting signal.
type Backlog struct {
	Pending   int64 `json:"pending"`
	Threshold int   `json:"threshold"`
	Alert     bool  `json:"alert"`
}

// BacklogAlert fires when the count of waiting orders passes the
// threshold.
func (s *Service) BacklogAlert(threshold int) Backlog {
	out := Backlog{Threshold: threshold}
	err := s.DB.Model(&models.Order{}).
		Where("delivery_status = ? AND status = ?", models.DeliveryWaiting, models.OrderStatusOpen).
		Count(&out.Pending).Error
	if err != nil {
		log.Printf("⚠️ Analytics backlog failed: %v", err)
		return Backlog{Threshold: threshold}
	}
	out.Alert = out.Pending > int64(threshold)
	return out
}
