package aggregator

import (
	"context"
)

// ClientInterface defines the methods required from the aggregator API client
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, ownerID string) (*LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error)
	FetchTransactions(ctx context.Context, params FetchParams) (*TransactionsPage, error)
}
