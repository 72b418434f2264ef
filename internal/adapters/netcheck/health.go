// Package netcheck проверяет сетевую доступность перед подключением TDLib:
// IPv4/IPv6 и SOCKS5-прокси из конфига. Результаты только логируются.
package netcheck

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/larriantoniy/tg_forward_bot/internal/config"
)

const (
	probeTimeout = 3 * time.Second
	proxyTimeout = 5 * time.Second
)

var (
	probeV4 = "8.8.8.8:53"
	probeV6 = "[2606:4700:4700::1111]:53"
)

func isIPv6Literal(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil // есть IP и это не IPv4 → IPv6
}

func isIPv4Literal(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}

func dial(network, addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// CheckIPv4 / CheckIPv6 возвращают true, если исходящее TCP-соединение получилось
func CheckIPv4(logger *slog.Logger) bool {
	logger.Debug("checking IPv4 connectivity...")
	if err := dial("tcp4", probeV4, probeTimeout); err != nil {
		logger.Warn("IPv4 seems not working", "error", err)
		return false
	}
	logger.Debug("IPv4 OK")
	return true
}

func CheckIPv6(logger *slog.Logger) bool {
	logger.Debug("checking IPv6 connectivity...")
	if err := dial("tcp6", probeV6, probeTimeout); err != nil {
		logger.Debug("IPv6 seems not working", "error", err)
		return false
	}
	logger.Debug("IPv6 OK")
	return true
}

// proxyNetworks задаёт порядок попыток: литерал определяет сеть, для hostname сначала IPv6, потом IPv4
func proxyNetworks(host string) []string {
	switch {
	case isIPv6Literal(host):
		return []string{"tcp6"}
	case isIPv4Literal(host):
		return []string{"tcp4"}
	default:
		return []string{"tcp6", "tcp4"}
	}
}

// CheckProxy проверяет, что прокси принимает TCP-соединения
func CheckProxy(logger *slog.Logger, p config.ProxyConfig) bool {
	if !p.Enabled {
		logger.Debug("proxy disabled, skipping check")
		return true
	}

	addr := net.JoinHostPort(p.Server, strconv.Itoa(int(p.Port)))
	for _, network := range proxyNetworks(p.Server) {
		logger.Info("checking proxy...", "addr", addr, "network", network)
		if err := dial(network, addr, proxyTimeout); err != nil {
			logger.Warn("proxy unreachable", "addr", addr, "network", network, "error", err)
			continue
		}
		logger.Info("proxy reachable", "addr", addr, "network", network)
		return true
	}
	logger.Error("proxy unreachable on all networks", "addr", addr)
	return false
}

// Run выполняет все проверки; вызывается перед каждым подключением TDLib
func Run(logger *slog.Logger, p config.ProxyConfig) {
	CheckIPv4(logger)
	CheckIPv6(logger)
	CheckProxy(logger, p)
}
