package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger 构建全局日志器，返回的函数用于退出前刷新缓冲
func InitLogger(logLevel string) func() {
	cfg := zap.NewDevelopmentConfig()

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		// 无法识别的级别按 info 处理
		level = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(level)

	cfg.InitialFields = map[string]any{
		"service": "mafia-be",
	}

	lgr, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("构建日志器失败: %w", err))
	}

	undo := zap.ReplaceGlobals(lgr)

	return func() {
		_ = lgr.Sync()
		undo()
	}
}
