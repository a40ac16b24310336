package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-care/internal/domain"
)

// AlertSender 单条告警发送通道（短信/推送等）
// Notifier 只关心扇出策略，不关心通道协议
type AlertSender interface {
	Send(ctx context.Context, phone, message string) error
}

// Result 扇出结果（观测数据，从不作为请求错误上抛）
type Result struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Notifier 跌倒告警扇出
// 每个收件人独立派发：单个失败不影响其他派发；
// 每次派发有独立超时，单个不可达的通道不会拖住整个扇出
type Notifier struct {
	sender  AlertSender
	timeout time.Duration // 单次派发超时
	logger  *zap.Logger
}

// NewNotifier 创建 Notifier
// timeout <= 0 时使用默认 10s
func NewNotifier(sender AlertSender, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
	}
}

// NotifyFall 向患者的全部责任护士扇出跌倒告警
// 没有电话号码的护士跳过（不计入失败）；并发派发，全部完成后汇总
func (n *Notifier) NotifyFall(ctx context.Context, patient *domain.User, nurses []*domain.User) Result {
	message := fmt.Sprintf("URGENT: Patient %s has fallen. Please check immediately.", patient.Name)

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result Result
	)

	for _, nurse := range nurses {
		if !nurse.Phone.Valid || nurse.Phone.String == "" {
			n.logger.Debug("Skipping nurse without contact channel",
				zap.String("nurse_id", nurse.UserID),
			)
			continue
		}

		mu.Lock()
		result.Attempted++
		mu.Unlock()

		wg.Add(1)
		go func(nurse *domain.User) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
			defer cancel()

			err := n.sender.Send(sendCtx, nurse.Phone.String, message)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				n.logger.Warn("Failed to deliver fall alert",
					zap.String("nurse_id", nurse.UserID),
					zap.String("patient_id", patient.UserID),
					zap.Error(err),
				)
				return
			}
			result.Delivered++
			n.logger.Info("Fall alert delivered",
				zap.String("nurse_id", nurse.UserID),
				zap.String("patient_id", patient.UserID),
			)
		}(nurse)
	}

	wg.Wait()
	return result
}
