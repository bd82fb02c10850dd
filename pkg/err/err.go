package errprocess

import (
	"errors"
	"fmt"

	"topli_chat/pkg/logger"

	"go.uber.org/zap"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log errMsg and wrap the sentinel kind so callers can errors.Is on it
func Wrap(kind error, errMsg string, fields ...zap.Field) error {
	logger.Log.Warn(errMsg, append(fields, zap.String("kind", kind.Error()))...)
	return fmt.Errorf("%s: %w", errMsg, kind)
}
