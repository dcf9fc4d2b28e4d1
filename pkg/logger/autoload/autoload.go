// Package autoload initialises the global logger from LOG_* variables on
// import.
package autoload

import (
	configx "github.com/tanpawarit/outfitters-agent/pkg/config"
	logx "github.com/tanpawarit/outfitters-agent/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
