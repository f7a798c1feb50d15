package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acted/rules-engine/internal/app"
	"github.com/acted/rules-engine/internal/metrics"
	"github.com/acted/rules-engine/internal/router"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// Version is the binary version (tag) + build number (CI pipeline)
	Version string
	// BuildDate is the date of build
	BuildDate string
)

func main() {
	app.InitConfiguration()
	app.InitLogger(viper.GetBool("LOGGER_PRODUCTION"))

	hostname, _ := os.Hostname()
	metrics.InitMetricLabels(hostname)

	zap.L().Info("Starting Rules Engine", zap.String("version", Version), zap.String("build_date", BuildDate))
	app.Init()
	defer app.Stop()

	serverPort := viper.GetInt("SERVER_PORT")
	serverEnableTLS := viper.GetBool("SERVER_ENABLE_TLS")
	serverTLSCert := viper.GetString("SERVER_TLS_FILE_CRT")
	serverTLSKey := viper.GetString("SERVER_TLS_FILE_KEY")

	r := router.New(router.Config{
		CORS:           viper.GetBool("API_ENABLE_CORS"),
		RequestTimeout: 2 * viper.GetDuration("ENGINE_EXECUTION_TIMEOUT"),
	})
	zap.L().Info("Routes registered", zap.Strings("routes", router.Routes(r)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", serverPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err error
		if serverEnableTLS {
			err = srv.ListenAndServeTLS(serverTLSCert, serverTLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("Server listen", zap.Error(err))
		}
	}()
	zap.L().Info("Server Started", zap.String("addr", srv.Addr))

	<-done

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err := srv.Shutdown(ctxShutDown); err != nil {
		zap.L().Error("Server shutdown failed", zap.Error(err))
	}
	zap.L().Info("Server shutdown")
}
