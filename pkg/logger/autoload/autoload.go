// Package autoload initializes the global logger from the environment as a
// side effect of being imported. Import it for its blank identifier in main.
package autoload

import (
	configx "github.com/vndang/shoptalk/pkg/config"
	logx "github.com/vndang/shoptalk/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
