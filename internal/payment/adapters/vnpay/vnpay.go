package vnpay

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/unidecode"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/condofee/internal/payment/domain"
)

const (
	Provider = "vnpay"

	Version   = "2.1.0"
	Command   = "pay"
	CurrCode  = "VND"
	Locale    = "vn"
	OrderType = "other"

	// AmountScale is the factor vnp_Amount carries over the VND amount.
	AmountScale = 100

	dateLayout      = "20060102150405"
	maxOrderInfoLen = 255
)

var amountScale = decimal.NewFromInt(AmountScale)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return Provider
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.GatewayAdapter, error) {
	cfg.TmnCode = strings.TrimSpace(cfg.TmnCode)
	cfg.HashSecret = strings.TrimSpace(cfg.HashSecret)
	cfg.PayURL = strings.TrimSpace(cfg.PayURL)
	cfg.ReturnURL = strings.TrimSpace(cfg.ReturnURL)
	if cfg.TmnCode == "" || cfg.HashSecret == "" || cfg.PayURL == "" || cfg.ReturnURL == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{cfg: cfg, signer: NewSigner(cfg.HashSecret)}, nil
}

type Adapter struct {
	cfg    paymentdomain.AdapterConfig
	signer *Signer
}

func (a *Adapter) Provider() string {
	return Provider
}

// NewTxnRef returns "<invoiceID>_<unix millis>".
func (a *Adapter) NewTxnRef(invoiceID snowflake.ID, at time.Time) string {
	return invoiceID.String() + "_" + strconv.FormatInt(at.UnixMilli(), 10)
}

func (a *Adapter) BuildPaymentURL(req paymentdomain.CheckoutRequest) (string, error) {
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(0)) {
		return "", paymentdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.TxnRef) == "" {
		return "", paymentdomain.ErrInvalidTxnReference
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    Command,
		"vnp_TmnCode":    a.cfg.TmnCode,
		"vnp_Amount":     req.Amount.Mul(amountScale).StringFixed(0),
		"vnp_CurrCode":   CurrCode,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  OrderInfo(req.OrderInfo),
		"vnp_OrderType":  OrderType,
		"vnp_Locale":     Locale,
		"vnp_ReturnUrl":  a.cfg.ReturnURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": req.CreatedAt.Format(dateLayout),
		"vnp_ExpireDate": req.ExpiresAt.Format(dateLayout),
	}
	if code := strings.TrimSpace(req.BankCode); code != "" {
		params["vnp_BankCode"] = code
	}

	sep := "?"
	if strings.Contains(a.cfg.PayURL, "?") {
		sep = "&"
	}
	return a.cfg.PayURL + sep + a.signer.SignedQuery(params), nil
}

func (a *Adapter) Verify(params map[string]string) error {
	return a.signer.Verify(params)
}

func (a *Adapter) ParseCallback(params map[string]string) *paymentdomain.Callback {
	raw := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		raw[k] = v
	}
	txnRef := strings.TrimSpace(params["vnp_TxnRef"])
	return &paymentdomain.Callback{
		Provider:      Provider,
		TxnRef:        txnRef,
		TransactionNo: strings.TrimSpace(params["vnp_TransactionNo"]),
		ResponseCode:  strings.TrimSpace(params["vnp_ResponseCode"]),
		BankCode:      strings.TrimSpace(params["vnp_BankCode"]),
		OrderInfo:     params["vnp_OrderInfo"],
		InvoiceID:     InvoiceIDFromTxnRef(txnRef),
		Amount:        ParseAmount(params["vnp_Amount"]),
		Raw:           raw,
	}
}

func (a *Adapter) Classify(responseCode string) paymentdomain.GatewayStatus {
	return Describe(strings.TrimSpace(responseCode))
}

// InvoiceIDFromTxnRef extracts the invoice id embedded before the first '_'.
// It returns zero when the reference is malformed.
func InvoiceIDFromTxnRef(txnRef string) snowflake.ID {
	head, _, _ := strings.Cut(strings.TrimSpace(txnRef), "_")
	id, err := snowflake.ParseString(head)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// ParseAmount converts a scaled vnp_Amount back to VND. Non-numeric,
// non-positive, or values that are not a whole multiple of the scale
// yield zero.
func ParseAmount(value string) decimal.Decimal {
	scaled, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !scaled.IsPositive() {
		return decimal.Zero
	}
	amount := scaled.Div(amountScale)
	if !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero
	}
	return amount
}

// OrderInfo transliterates a description to plain ASCII, the only form the
// gateway accepts in vnp_OrderInfo.
func OrderInfo(text string) string {
	ascii := unidecode.Unidecode(text)
	var b strings.Builder
	space := false
	for _, r := range ascii {
		if unicode.IsSpace(r) {
			r = ' '
		}
		if r < 0x20 || r > 0x7e {
			continue
		}
		if r == ' ' {
			if space || b.Len() == 0 {
				continue
			}
			space = true
		} else {
			space = false
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if len(out) > maxOrderInfoLen {
		out = strings.TrimSpace(out[:maxOrderInfoLen])
	}
	return out
}
