package statistics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/pkg/types"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatisticType string

const (
	// Subscription base
	StatisticTypeSubscriptionStatusCount StatisticType = "subscription_status_count"
	StatisticTypeTierCount               StatisticType = "tier_count"
	StatisticTypeDailyNewSubscriptions   StatisticType = "daily_new_subscriptions"

	// Invoice ledger
	StatisticTypeDailyRevenue       StatisticType = "daily_revenue"
	StatisticTypeTotalRevenue       StatisticType = "total_revenue"
	StatisticTypePaymentFailureRate StatisticType = "payment_failure_rate"
)

// Filter fields supported by certain statistic types
type BillingStatisticFilterType string

const (
	BillingStatisticFilterTypeTier   BillingStatisticFilterType = "tier"
	BillingStatisticFilterTypeStatus BillingStatisticFilterType = "status"
)

var filterTypes = []BillingStatisticFilterType{
	BillingStatisticFilterTypeTier,
	BillingStatisticFilterTypeStatus,
}

var validFilters = map[BillingStatisticFilterType][]StatisticType{
	BillingStatisticFilterTypeTier:   {StatisticTypeSubscriptionStatusCount, StatisticTypeDailyNewSubscriptions},
	BillingStatisticFilterTypeStatus: {StatisticTypeTierCount, StatisticTypeDailyNewSubscriptions},
}

type BillingStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type BillingStatisticRequest struct {
	Filters   []*types.CommonFilter       `json:"filters"`
	DataItems []*BillingStatisticDataItem `json:"data_items"`
}

func (f *BillingStatisticRequest) GetFilters(statisticType StatisticType) *BillingStatisticRequest {
	if f == nil || len(f.Filters) == 0 {
		return f
	}
	var result BillingStatisticRequest
	for _, filter := range f.Filters {
		if statisticTypes, ok := validFilters[BillingStatisticFilterType(filter.Field)]; ok {
			if lo.Contains(statisticTypes, statisticType) {
				result.Filters = append(result.Filters, filter)
			}
		} else {
			result.Filters = append(result.Filters, filter)
		}
	}
	return &result
}

// Build composes a WHERE clause from the request filters.
func (f *BillingStatisticRequest) Build(builder clause.Builder) {
	if f == nil || len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

type BillingStatisticResponseDataItem struct {
	Date   string `json:"date"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
}

type BillingStatisticResponse struct {
	DataItems map[StatisticType][]BillingStatisticResponseDataItem `json:"data_items"`
}

// statisticCacheTTL bounds how stale an admin dashboard read may be. The
// aggregate queries scan whole tables, so identical requests within the
// window share one result.
const statisticCacheTTL = time.Minute

type cachedStatistic struct {
	res *BillingStatisticResponse
	at  time.Time
}

// Service provides read-only aggregates over the reconciliation engine's
// tables for the admin API. It never mutates state.
type Service struct {
	db *gorm.DB

	mu    sync.Mutex
	cache map[string]cachedStatistic
}

func New(db *gorm.DB) *Service {
	return &Service{db: db, cache: make(map[string]cachedStatistic)}
}

func (s *Service) getSubscriptionStatusCount(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("status as label, count(*) as value").
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeSubscriptionStatusCount)}}).
		Group("status").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTierCount(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("tier as label, count(*) as value").
		Where("status IN ?", []types.SubscriptionStatus{types.SubscriptionStatusTrialing, types.SubscriptionStatusActive}).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeTierCount)}}).
		Group("tier").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewSubscriptions(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyNewSubscriptions)}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyRevenue(ctx context.Context, _ *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.InvoicePayment{}).TableName()).
		Select("TO_CHAR(recorded_at, 'YYYY-MM-DD') as date, sum(amount_cents) as value").
		Where("status = ?", types.InvoicePaymentStatusSucceeded).
		Group("TO_CHAR(recorded_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalRevenue(ctx context.Context, _ *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH min_max_dates AS (
    SELECT MIN(DATE(recorded_at)) as min_date, MAX(DATE(recorded_at)) as max_date
    FROM invoice_payment WHERE status = 'succeeded'
),
distinct_dates AS (
    SELECT generate_series(min_date, max_date, '1 day'::interval) as date FROM min_max_dates
),
revenue_date AS (
    SELECT TO_CHAR(d.date, 'YYYY-MM-DD') as date, COALESCE(SUM(p.amount_cents), 0) as value
    FROM distinct_dates d
    LEFT JOIN invoice_payment p
      ON DATE(p.recorded_at) = DATE(d.date)
     AND p.status = 'succeeded'
    GROUP BY d.date
)
SELECT d.date as date, SUM(s.value) as value
FROM revenue_date d
LEFT JOIN revenue_date s ON s.date <= d.date
GROUP BY d.date
ORDER BY d.date DESC
`).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getPaymentFailureRate(ctx context.Context, _ *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	// value: failed per 10000 attempts; value2: total attempts that day
	err := s.db.WithContext(ctx).Raw(`
WITH attempts AS (
  SELECT TO_CHAR(recorded_at, 'YYYY-MM-DD') as date,
         COUNT(*) as total,
         COUNT(*) FILTER (WHERE status = 'failed') as failed
  FROM invoice_payment
  GROUP BY TO_CHAR(recorded_at, 'YYYY-MM-DD')
)
SELECT date,
       CASE WHEN total = 0 THEN 0
            ELSE CAST(ROUND(failed * 10000.0 / total) AS INTEGER)
       END as value,
       total as value2
FROM attempts
ORDER BY date DESC
`).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getBillingStatistic(ctx context.Context, request *BillingStatisticRequest, dataItem *BillingStatisticDataItem) ([]BillingStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeSubscriptionStatusCount:
		return s.getSubscriptionStatusCount(ctx, request)
	case StatisticTypeTierCount:
		return s.getTierCount(ctx, request)
	case StatisticTypeDailyNewSubscriptions:
		return s.getDailyNewSubscriptions(ctx, request)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, request)
	case StatisticTypeTotalRevenue:
		return s.getTotalRevenue(ctx, request)
	case StatisticTypePaymentFailureRate:
		return s.getPaymentFailureRate(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

func (s *Service) GetBillingStatistic(ctx context.Context, request *BillingStatisticRequest) (*BillingStatisticResponse, error) {
	key := cacheKey(request)
	s.mu.Lock()
	if c, ok := s.cache[key]; ok && time.Since(c.at) < statisticCacheTTL {
		s.mu.Unlock()
		return c.res, nil
	}
	s.mu.Unlock()

	res, err := s.getBillingStatistics(ctx, request)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cachedStatistic{res: res, at: time.Now()}
	s.mu.Unlock()
	return res, nil
}

func cacheKey(request *BillingStatisticRequest) string {
	b, _ := json.Marshal(request)
	return string(b)
}

func (s *Service) getBillingStatistics(ctx context.Context, request *BillingStatisticRequest) (*BillingStatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []BillingStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *BillingStatisticDataItem) {
			defer wg.Done()
			// check filter applicability
			for _, filter := range request.Filters {
				ft := BillingStatisticFilterType(filter.Field)
				if lo.Contains(filterTypes, ft) && !lo.Contains(validFilters[ft], di.ID) {
					resChan <- &lo.Entry[StatisticType, []BillingStatisticResponseDataItem]{Key: di.ID, Value: nil}
					return
				}
			}
			res, err := s.getBillingStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []BillingStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]BillingStatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &BillingStatisticResponse{DataItems: results}, nil
}

// ListSubscriptionsRequest pages through subscriptions for the admin UI.
type ListSubscriptionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListSubscriptionsResponse struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}

var subscriptionSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"watermark":  true,
	"user_id":    true,
	"status":     true,
	"tier":       true,
}

// filtersWhere wraps a list of filters into a single clause.Expression.
type filtersWhere struct{ filters []*types.CommonFilter }

func (w filtersWhere) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range w.filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

func (s *Service) ListSubscriptions(ctx context.Context, req *ListSubscriptionsRequest) (*ListSubscriptionsResponse, error) {
	size := req.Size
	if size <= 0 || size > 1000 {
		size = 100
	}
	sortBy := req.SortBy
	if !subscriptionSortColumns[sortBy] {
		sortBy = "updated_at"
	}
	desc := strings.ToLower(req.SortOrder) != "asc"

	base := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where(clause.Where{Exprs: []clause.Expression{filtersWhere{filters: req.Filters}}})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	var items []*models.Subscription
	if err := base.
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: desc}).
		Offset(req.From).Limit(size).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return &ListSubscriptionsResponse{Items: items, Total: total}, nil
}

// ListWebhookEvents returns the most recent webhook event log rows for a
// remote subscription, newest first. Troubleshooting aid.
func (s *Service) ListWebhookEvents(ctx context.Context, remoteSubscriptionID string, limit int) ([]*models.WebhookEventLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var items []*models.WebhookEventLog
	q := s.db.WithContext(ctx).Model(&models.WebhookEventLog{}).
		Order("created_at desc").
		Limit(limit)
	if remoteSubscriptionID != "" {
		q = q.Where("remote_subscription_id = ?", remoteSubscriptionID)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
