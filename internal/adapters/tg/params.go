package tg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zelenin/go-tdlib/client"

	"github.com/larriantoniy/tg_forward_bot/internal/config"
)

// sessionDirs создаёт каталоги TDLib для сессии: <base>/<session>/{database,files}
func sessionDirs(baseDir, sessionName string) (dbDir, filesDir string, err error) {
	sessionDir := filepath.Join(baseDir, sessionName)
	dbDir = filepath.Join(sessionDir, "database")
	filesDir = filepath.Join(sessionDir, "files")

	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir files dir: %w", err)
	}
	return dbDir, filesDir, nil
}

func tdParams(cfg *config.AppConfig, dbDir, filesDir string) *client.SetTdlibParametersRequest {
	lang := cfg.TDLib.LangCode
	if lang == "" {
		lang = "en"
	}

	systemVersion := cfg.TDLib.SystemVersion
	if systemVersion == "" {
		systemVersion = "Windows 10"
	}

	appVersion := cfg.TDLib.AppVersion
	if appVersion == "" {
		appVersion = "2.0"
	}

	deviceModel := cfg.TDLib.DeviceModel
	if deviceModel == "" {
		deviceModel = "Desktop"
	}

	return &client.SetTdlibParametersRequest{
		UseTestDc:           false,
		DatabaseDirectory:   dbDir,
		FilesDirectory:      filesDir,
		UseFileDatabase:     true,
		UseChatInfoDatabase: true,
		UseMessageDatabase:  true,
		UseSecretChats:      false,
		ApiId:               cfg.ApiID,
		ApiHash:             cfg.ApiHash,
		SystemLanguageCode:  lang,
		DeviceModel:         deviceModel,
		SystemVersion:       systemVersion,
		ApplicationVersion:  appVersion,
	}
}

func proxyOption(p config.ProxyConfig) (client.Option, bool) {
	if !p.Enabled || p.Server == "" || p.Port == 0 {
		return nil, false
	}
	return client.WithProxy(&client.AddProxyRequest{
		Server: p.Server,
		Port:   p.Port,
		Enable: true,
		Type: &client.ProxyTypeSocks5{
			Username: p.Username,
			Password: p.Password,
		},
	}), true
}
