package providers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/pratik-mahalle/costmonitor/internal/domain/cost"
	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
)

// OrganizationsLister implements cost.AccountLister
type OrganizationsLister struct {
	client organizations.ListAccountsAPIClient
}

// NewOrganizationsLister creates a new organizations lister
func NewOrganizationsLister(client organizations.ListAccountsAPIClient) *OrganizationsLister {
	return &OrganizationsLister{client: client}
}

// ListActiveAccounts pages through every account and keeps the ACTIVE ones
func (l *OrganizationsLister) ListActiveAccounts(ctx context.Context) ([]cost.Account, error) {
	accounts := []cost.Account{}

	p := organizations.NewListAccountsPaginator(l.client, &organizations.ListAccountsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, apperrors.OrganizationsError(err)
		}
		for _, a := range page.Accounts {
			if a.Status != orgtypes.AccountStatusActive {
				continue
			}
			accounts = append(accounts, cost.Account{
				ID:    aws.ToString(a.Id),
				Name:  aws.ToString(a.Name),
				Email: aws.ToString(a.Email),
			})
		}
	}

	return accounts, nil
}
