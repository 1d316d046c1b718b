package payment

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/noah-isme/admission-portal-api/pkg/config"
)

// Outcome is the internal reading of a gateway transaction status.
type Outcome string

const (
	OutcomePaid    Outcome = "PAID"
	OutcomeFailed  Outcome = "FAILED"
	OutcomePending Outcome = "PENDING"
	OutcomeIgnored Outcome = "IGNORED"
)

// Customer identifies the payer on the checkout page.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Charge is a single fee checkout request.
type Charge struct {
	OrderID     string
	Amount      int64
	Description string
	Customer    Customer
}

// Checkout is the hosted payment page handle.
type Checkout struct {
	OrderID     string `json:"orderId"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
}

// Notification is the subset of the Midtrans webhook body we act on.
type Notification struct {
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

// Gateway wraps the Snap client.
type Gateway struct {
	client    snap.Client
	serverKey string
	cfg       config.PaymentConfig
}

// NewGateway configures a Snap client for sandbox or production.
func NewGateway(cfg config.PaymentConfig) *Gateway {
	g := &Gateway{serverKey: cfg.ServerKey, cfg: cfg}
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	g.client.New(cfg.ServerKey, env)
	return g
}

// CreateCheckout opens a Snap transaction and returns its token.
func (g *Gateway) CreateCheckout(charge Charge) (*Checkout, error) {
	if charge.Amount <= 0 {
		return nil, fmt.Errorf("invalid amount %d", charge.Amount)
	}
	if charge.OrderID == "" {
		return nil, fmt.Errorf("order id required")
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  charge.OrderID,
			GrossAmt: charge.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: charge.Customer.FirstName,
			LName: charge.Customer.LastName,
			Email: charge.Customer.Email,
			Phone: charge.Customer.Phone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:       charge.OrderID,
			Price:    charge.Amount,
			Qty:      1,
			Name:     truncate(charge.Description, 50),
			Category: g.cfg.ItemCategory,
		}},
	}
	if g.cfg.FinishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: g.cfg.FinishURL}
	}

	resp, err := g.client.CreateTransaction(req)
	if err != nil {
		return nil, fmt.Errorf("create snap transaction: %w", err)
	}
	return &Checkout{OrderID: charge.OrderID, Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// Verify checks SHA512(order_id + status_code + gross_amount + server_key).
func (g *Gateway) Verify(n Notification) bool {
	return VerifySignature(n, g.serverKey)
}

// VerifySignature validates a notification against serverKey.
func VerifySignature(n Notification, serverKey string) bool {
	want := strings.ToLower(n.SignatureKey)
	if want == "" || serverKey == "" {
		return false
	}
	return Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey) == want
}

// Sign computes the notification signature.
func Sign(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// Classify maps a Midtrans transaction status onto an outcome.
func Classify(n Notification) Outcome {
	switch strings.ToLower(n.TransactionStatus) {
	case "capture":
		if strings.EqualFold(n.FraudStatus, "challenge") {
			return OutcomePending
		}
		return OutcomePaid
	case "settlement":
		return OutcomePaid
	case "deny", "cancel", "expire", "failure":
		return OutcomeFailed
	case "pending":
		return OutcomePending
	default:
		return OutcomeIgnored
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
