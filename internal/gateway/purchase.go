package gateway

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// cryptTypeSSL is the e-commerce indicator for a vaulted/tokenized card purchase.
const cryptTypeSSL = "7"

// PurchaseRequest contains the parameters for a token purchase.
type PurchaseRequest struct {
	OrderID    string
	CustomerID string
	DataKey    string
	Amount     decimal.Decimal
}

type purchaseRequest struct {
	XMLName  xml.Name      `xml:"request"`
	StoreID  string        `xml:"store_id"`
	APIToken string        `xml:"api_token"`
	Purchase resPurchaseCC `xml:"res_purchase_cc"`
}

type resPurchaseCC struct {
	DataKey   string `xml:"data_key"`
	OrderID   string `xml:"order_id"`
	CustID    string `xml:"cust_id"`
	Amount    string `xml:"amount"`
	CryptType string `xml:"crypt_type"`
}

// PurchaseReceipt is the settlement document returned for a token purchase.
type PurchaseReceipt struct {
	ReceiptID    string `xml:"ReceiptId" json:"ReceiptId"`
	ReferenceNum string `xml:"ReferenceNum" json:"ReferenceNum"`
	ResponseCode string `xml:"ResponseCode" json:"ResponseCode"`
	AuthCode     string `xml:"AuthCode" json:"AuthCode"`
	TransTime    string `xml:"TransTime" json:"TransTime"`
	TransDate    string `xml:"TransDate" json:"TransDate"`
	TransAmount  string `xml:"TransAmount" json:"TransAmount"`
	TransID      string `xml:"TransID" json:"TransID"`
	CardType     string `xml:"CardType" json:"CardType"`
	Complete     string `xml:"Complete" json:"Complete"`
	Message      string `xml:"Message" json:"Message"`
	DataKey      string `xml:"DataKey" json:"DataKey"`
}

type purchaseXMLResponse struct {
	XMLName xml.Name         `xml:"response"`
	Receipt *PurchaseReceipt `xml:"receipt"`
}

type purchaseJSONResponse struct {
	Response *struct {
		Receipt *PurchaseReceipt `json:"receipt"`
	} `json:"response"`
}

// Purchase exchanges a data key for a settlement. The reply is parsed according
// to its declared or sniffed format; it is not assumed to be XML.
func (c *Client) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseReceipt, error) {
	const op = "res_purchase_cc"

	body := purchaseRequest{
		StoreID:  c.cfg.StoreID,
		APIToken: c.cfg.APIToken,
		Purchase: resPurchaseCC{
			DataKey:   req.DataKey,
			OrderID:   req.OrderID,
			CustID:    req.CustomerID,
			Amount:    req.Amount.StringFixed(2),
			CryptType: cryptTypeSSL,
		},
	}

	doc, err := xml.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}
	payload := append([]byte(xml.Header), doc...)

	log.Printf("layer=gateway component=client op=%s order_id=%s amount=%s store_id=%s api_token=%s",
		op, req.OrderID, body.Purchase.Amount, c.cfg.StoreID, redacted)

	resp, err := c.post(ctx, op, c.cfg.PurchaseURL, "application/xml", payload)
	if err != nil {
		return nil, err
	}

	receipt, err := parsePurchaseResponse(resp, op)
	if err != nil {
		log.Printf("layer=gateway component=client op=%s order_id=%s status=%d content_type=%q malformed body=%q",
			op, req.OrderID, resp.StatusCode, resp.ContentType, resp.Body)
		return nil, err
	}
	return receipt, nil
}

func parsePurchaseResponse(resp *Response, op string) (*PurchaseReceipt, error) {
	var receipt *PurchaseReceipt

	switch resp.Format {
	case FormatXML:
		var doc purchaseXMLResponse
		if err := xml.Unmarshal(resp.Body, &doc); err != nil {
			return nil, resp.malformed(op, err)
		}
		receipt = doc.Receipt
	case FormatJSON:
		var doc purchaseJSONResponse
		if err := json.Unmarshal(resp.Body, &doc); err != nil {
			return nil, resp.malformed(op, err)
		}
		if doc.Response != nil {
			receipt = doc.Response.Receipt
		}
	default:
		return nil, resp.malformed(op, errors.New("unrecognized response format"))
	}

	if receipt == nil {
		return nil, resp.malformed(op, errors.New("missing receipt"))
	}
	return receipt, nil
}
