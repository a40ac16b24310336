package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// TelesignResponse TeleSign Messaging API 响应
type TelesignResponse struct {
	ReferenceID string `json:"reference_id"`
	Status      struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"status"`
}

// TelesignClient TeleSign 短信通道客户端
// 超时由调用方的 context 控制（Notifier 对每次派发设置独立超时）
type TelesignClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewTelesignClient 创建 TeleSign 客户端
// customerID/apiKey 为 TeleSign 账号凭证（Basic Auth）
func NewTelesignClient(baseURL, customerID, apiKey string, logger *zap.Logger) *TelesignClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(customerID, apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Accept", "application/json")

	return &TelesignClient{
		httpClient: client,
		logger:     logger,
	}
}

var _ AlertSender = (*TelesignClient)(nil)

// Send 发送一条短信（message_type=ARN，告警类）
func (c *TelesignClient) Send(ctx context.Context, phone, message string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"phone_number": phone,
			"message":      message,
			"message_type": "ARN",
		}).
		Post("/v1/messaging")
	if err != nil {
		return fmt.Errorf("failed to call telesign: %w", err)
	}

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("telesign returned HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	var body TelesignResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return fmt.Errorf("failed to decode telesign response: %w", err)
	}

	c.logger.Debug("SMS accepted by telesign",
		zap.String("reference_id", body.ReferenceID),
		zap.Int("status_code", body.Status.Code),
	)
	return nil
}

// NoopSender 空实现：未配置短信凭证时使用，只记录日志
type NoopSender struct {
	logger *zap.Logger
}

func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

var _ AlertSender = (*NoopSender)(nil)

func (s *NoopSender) Send(_ context.Context, phone, message string) error {
	s.logger.Info("SMS sending disabled, alert logged only",
		zap.String("phone", phone),
		zap.String("message", message),
	)
	return nil
}
