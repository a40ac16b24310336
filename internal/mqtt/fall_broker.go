package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/service"
)

// FallBroker 可穿戴设备跌倒上报的 MQTT 入口
// 设备发布到 care/fall/<patientID>，payload 可为空或携带补充数据；
// 收到消息即触发一次完整的跌倒上报流程（置位 → 通知 → 复位）
type FallBroker struct {
	fallService service.FallService
	logger      *zap.Logger
}

// NewFallBroker 创建跌倒上报 Broker
func NewFallBroker(fallService service.FallService, logger *zap.Logger) *FallBroker {
	return &FallBroker{
		fallService: fallService,
		logger:      logger,
	}
}

// devicePayload 设备上报负载（全部可选，patientId 以 topic 为准）
type devicePayload struct {
	PatientID string `json:"patientId"`
	DeviceID  string `json:"deviceId"`
}

// HandleMessage 处理一条设备跌倒消息
func (b *FallBroker) HandleMessage(topic string, payload []byte) error {
	patientID := patientIDFromTopic(topic)

	if patientID == "" && len(payload) > 0 {
		var p devicePayload
		if err := json.Unmarshal(payload, &p); err == nil {
			patientID = p.PatientID
		}
	}
	if patientID == "" {
		return fmt.Errorf("fall message without patient id on topic %s", topic)
	}

	b.logger.Info("Device fall report received",
		zap.String("topic", topic),
		zap.String("patient_id", patientID),
	)

	_, err := b.fallService.ReportFall(context.Background(), patientID, domain.FallSourceDevice)
	if err != nil {
		return fmt.Errorf("failed to process device fall report: %w", err)
	}
	return nil
}

// patientIDFromTopic 从 care/fall/<patientID> 提取患者 ID
func patientIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "care" || parts[1] != "fall" {
		return ""
	}
	return parts[2]
}
