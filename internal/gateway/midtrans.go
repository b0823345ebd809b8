// Package gateway wraps the Midtrans SDK behind an explicitly constructed
// client owned by the process bootstrap.
package gateway

import (
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

type Client struct {
	snap snap.Client
	core coreapi.Client
}

func NewClient(serverKey string, production bool) *Client {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	c := &Client{}
	c.snap.New(serverKey, env)
	c.core.New(serverKey, env)
	return c
}

type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type ChargeItem struct {
	ID       string
	Price    int64
	Quantity int32
	Name     string
}

// CreateSnapToken opens a Snap checkout session for the order and returns
// the transaction token plus the hosted payment page URL.
func (c *Client) CreateSnapToken(orderID string, grossAmount int64, cust Customer, items []ChargeItem, finishURL string) (string, string, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: grossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: cust.FirstName,
			LName: cust.LastName,
			Email: cust.Email,
			Phone: cust.Phone,
		},
	}

	details := make([]midtrans.ItemDetails, 0, len(items))
	for _, item := range items {
		details = append(details, midtrans.ItemDetails{
			ID:    item.ID,
			Price: item.Price,
			Qty:   item.Quantity,
			Name:  item.Name,
		})
	}
	req.Items = &details

	if finishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: finishURL}
	}

	resp, mErr := c.snap.CreateTransaction(req)
	if mErr != nil {
		return "", "", mErr
	}
	return resp.Token, resp.RedirectURL, nil
}

// TransactionStatus looks a transaction up on the gateway by id.
func (c *Client) TransactionStatus(transactionID string) (*coreapi.TransactionStatusResponse, error) {
	resp, mErr := c.core.CheckTransaction(transactionID)
	if mErr != nil {
		return nil, mErr
	}
	return resp, nil
}
