package shipengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/go-resty/resty/v2"
)

const (
	apiKeyHeader      = "API-Key"
	defaultWeightOz   = 32
	labelFormatPDF    = "pdf"
	labelDownloadType = "url"
)

// ErrLabelNotFound is returned when the carrier has no record of the label.
var ErrLabelNotFound = errors.New("shipengine label not found")

// Address is a ShipEngine postal address.
type Address struct {
	Name          string  `json:"name"`
	CompanyName   *string `json:"company_name,omitempty"`
	Phone         string  `json:"phone"`
	Email         string  `json:"email,omitempty"`
	AddressLine1  string  `json:"address_line1"`
	AddressLine2  *string `json:"address_line2,omitempty"`
	CityLocality  string  `json:"city_locality"`
	StateProvince string  `json:"state_province"`
	PostalCode    string  `json:"postal_code"`
	CountryCode   string  `json:"country_code"`
}

// LabelRequest describes an inbound shipment from the buyer to the warehouse.
type LabelRequest struct {
	ShipFrom  Address
	WeightOz  float64
	Reference string
}

// PurchasedLabel carries the carrier identifiers and the downloaded PDF.
type PurchasedLabel struct {
	CarrierLabelID string
	TrackingNumber string
	PDF            []byte
}

// Client purchases and voids carrier labels.
type Client struct {
	http        *resty.Client
	carrierID   string
	serviceCode string
	shipTo      Address
}

type weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type shipmentPackage struct {
	Weight weight `json:"weight"`
}

type shipment struct {
	CarrierID   string            `json:"carrier_id,omitempty"`
	ServiceCode string            `json:"service_code"`
	ShipTo      Address           `json:"ship_to"`
	ShipFrom    Address           `json:"ship_from"`
	Packages    []shipmentPackage `json:"packages"`
}

type createLabelBody struct {
	Shipment          shipment `json:"shipment"`
	LabelFormat       string   `json:"label_format"`
	LabelDownloadType string   `json:"label_download_type"`
	ExternalReference string   `json:"external_shipment_id,omitempty"`
}

type createLabelResponse struct {
	LabelID        string `json:"label_id"`
	TrackingNumber string `json:"tracking_number"`
	LabelDownload  struct {
		PDF  string `json:"pdf"`
		Href string `json:"href"`
	} `json:"label_download"`
}

type voidLabelResponse struct {
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

type apiError struct {
	RequestID string `json:"request_id"`
	Errors    []struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	} `json:"errors"`
}

func (e *apiError) message() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, strings.TrimSpace(item.ErrorCode+" "+item.Message))
	}
	return strings.Join(parts, "; ")
}

// NewClient builds a ShipEngine client from config.
func NewClient(ctx context.Context, cfg config.ShipEngineConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("shipengine api key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("shipengine base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader(apiKeyHeader, cfg.APIKey).
		SetHeader("Accept", "application/json")

	client := &Client{
		http:        httpClient,
		carrierID:   cfg.CarrierID,
		serviceCode: cfg.ServiceCode,
		shipTo: Address{
			Name:          cfg.ShipToName,
			Phone:         cfg.ShipToPhone,
			AddressLine1:  cfg.ShipToLine1,
			CityLocality:  cfg.ShipToCity,
			StateProvince: cfg.ShipToState,
			PostalCode:    cfg.ShipToPostalCode,
			CountryCode:   "US",
		},
	}
	if logg != nil {
		logg.Info(ctx, "shipengine client initialized")
	}
	return client, nil
}

// PurchaseLabel buys a label and downloads its PDF bytes.
func (c *Client) PurchaseLabel(ctx context.Context, req LabelRequest) (*PurchasedLabel, error) {
	if c == nil || c.http == nil {
		return nil, errors.New("shipengine client not initialized")
	}
	weightOz := req.WeightOz
	if weightOz <= 0 {
		weightOz = defaultWeightOz
	}

	body := createLabelBody{
		Shipment: shipment{
			CarrierID:   c.carrierID,
			ServiceCode: c.serviceCode,
			ShipTo:      c.shipTo,
			ShipFrom:    req.ShipFrom,
			Packages:    []shipmentPackage{{Weight: weight{Value: weightOz, Unit: "ounce"}}},
		},
		LabelFormat:       labelFormatPDF,
		LabelDownloadType: labelDownloadType,
		ExternalReference: req.Reference,
	}

	var (
		out     createLabelResponse
		failure apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		SetError(&failure).
		Post("/v1/labels")
	if err != nil {
		return nil, fmt.Errorf("shipengine create label: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("shipengine create label status %d: %s", resp.StatusCode(), failure.message())
	}
	if out.LabelID == "" {
		return nil, errors.New("shipengine create label: empty label id")
	}

	href := out.LabelDownload.PDF
	if href == "" {
		href = out.LabelDownload.Href
	}
	if href == "" {
		return nil, errors.New("shipengine create label: missing download url")
	}

	pdf, err := c.download(ctx, href)
	if err != nil {
		return nil, err
	}
	return &PurchasedLabel{
		CarrierLabelID: out.LabelID,
		TrackingNumber: out.TrackingNumber,
		PDF:            pdf,
	}, nil
}

func (c *Client) download(ctx context.Context, href string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/pdf").
		Get(href)
	if err != nil {
		return nil, fmt.Errorf("shipengine download label: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("shipengine download label status %d", resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("shipengine download label: empty body")
	}
	return resp.Body(), nil
}

// VoidLabel voids a purchased label. A label the carrier does not know about
// returns ErrLabelNotFound.
func (c *Client) VoidLabel(ctx context.Context, carrierLabelID string) error {
	if c == nil || c.http == nil {
		return errors.New("shipengine client not initialized")
	}
	if strings.TrimSpace(carrierLabelID) == "" {
		return errors.New("carrier label id is required")
	}

	var (
		out     voidLabelResponse
		failure apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("labelID", carrierLabelID).
		SetResult(&out).
		SetError(&failure).
		Put("/v1/labels/{labelID}/void")
	if err != nil {
		return fmt.Errorf("shipengine void label: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrLabelNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("shipengine void label status %d: %s", resp.StatusCode(), failure.message())
	}
	if !out.Approved {
		return fmt.Errorf("shipengine void label rejected: %s", out.Message)
	}
	return nil
}
