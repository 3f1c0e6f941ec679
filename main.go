package main

import (
	"mafia-be/internal/api/http"
	"mafia-be/internal/config"
	"mafia-be/internal/logger"
	"mafia-be/internal/metrics"
	"mafia-be/internal/state"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	syncLogger := logger.InitLogger(cfg.LogLevel)
	defer syncLogger()

	// 注册监控指标
	metrics.InitPrometheus()

	// 组装应用状态
	appState := state.NewAppState(cfg)
	defer appState.Close()

	// 启动服务器
	if err := http.RunServer(appState); err != nil {
		zap.L().Error("服务器退出", zap.Error(err))
	}
}
