package providers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/logger"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/metrics"
)

const (
	costMetric = "UnblendedCost"

	// DefaultCostExplorerMaxPages caps result pages per fetch
	DefaultCostExplorerMaxPages = 10
)

// CostExplorerAPI is the subset of the Cost Explorer client used here
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// CostExplorerFetcher implements cost.Fetcher over GetCostAndUsage grouped by
// service and linked account.
type CostExplorerFetcher struct {
	client   CostExplorerAPI
	maxPages int
	logger   *logger.Logger
}

// NewCostExplorerFetcher creates a fetcher. Cost Explorer is only served from us-east-1,
// so build client from a config pinned to that region.
func NewCostExplorerFetcher(client CostExplorerAPI, maxPages int, log *logger.Logger) *CostExplorerFetcher {
	if maxPages <= 0 {
		maxPages = DefaultCostExplorerMaxPages
	}
	return &CostExplorerFetcher{
		client:   client,
		maxPages: maxPages,
		logger:   log,
	}
}

// FetchSnapshot sums daily UnblendedCost over window into a snapshot. When the page cap
// is reached with pages left, it logs a warning and returns what it has, marked truncated.
func (f *CostExplorerFetcher) FetchSnapshot(ctx context.Context, period cost.Period, window cost.DateRange) (*cost.Snapshot, error) {
	builder := cost.NewSnapshotBuilder(period, window)

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(window.StartDate()),
			End:   aws.String(window.EndDate()),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{costMetric},
		GroupBy: []cetypes.GroupDefinition{
			{
				Type: cetypes.GroupDefinitionTypeDimension,
				Key:  aws.String("SERVICE"),
			},
			{
				Type: cetypes.GroupDefinitionTypeDimension,
				Key:  aws.String("LINKED_ACCOUNT"),
			},
		},
	}

	log := f.logger.WithFields(map[string]interface{}{
		"period": period,
		"start":  window.StartDate(),
		"end":    window.EndDate(),
	})

	pages := 0
	for {
		result, err := f.client.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, apperrors.CostExplorerError(err)
		}
		pages++
		metrics.RecordCostExplorerPage(string(period))

		for _, resultByTime := range result.ResultsByTime {
			for _, group := range resultByTime.Groups {
				f.addGroup(log, builder, group)
			}
		}

		token := aws.ToString(result.NextPageToken)
		if token == "" {
			break
		}
		if pages >= f.maxPages {
			log.With("pages", pages).Warn("Cost Explorer page limit reached with pages remaining, report may be incomplete")
			metrics.RecordCostExplorerPageCap(string(period))
			builder.MarkTruncated()
			break
		}
		input.NextPageToken = aws.String(token)
	}

	snapshot, floored := builder.Build()
	if floored > 0 {
		log.With("entries", floored).Warn("Net-negative cost entries floored to zero")
		metrics.RecordFlooredEntries(floored)
	}

	return snapshot, nil
}

func (f *CostExplorerFetcher) addGroup(log *logger.Logger, builder *cost.SnapshotBuilder, group cetypes.Group) {
	if len(group.Keys) < 2 {
		return
	}
	service, account := group.Keys[0], group.Keys[1]

	metric, ok := group.Metrics[costMetric]
	if !ok || metric.Amount == nil {
		return
	}

	amount, err := decimal.NewFromString(*metric.Amount)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"service": service,
			"account": account,
			"amount":  *metric.Amount,
		}).WarnWithErr(err, "Skipping unparseable cost amount")
		return
	}

	builder.Add(account, service, amount)
}
