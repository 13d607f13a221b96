package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/yok-tottii/EzRecorder/internal/api"
	"github.com/yok-tottii/EzRecorder/internal/audio"
	"github.com/yok-tottii/EzRecorder/internal/clipboard"
	"github.com/yok-tottii/EzRecorder/internal/config"
	"github.com/yok-tottii/EzRecorder/internal/hotkey"
	"github.com/yok-tottii/EzRecorder/internal/i18n"
	"github.com/yok-tottii/EzRecorder/internal/library"
	"github.com/yok-tottii/EzRecorder/internal/logger"
	"github.com/yok-tottii/EzRecorder/internal/notification"
	"github.com/yok-tottii/EzRecorder/internal/permissions"
	"github.com/yok-tottii/EzRecorder/internal/recording"
	"github.com/yok-tottii/EzRecorder/internal/scheduler"
	"github.com/yok-tottii/EzRecorder/internal/server"
	"github.com/yok-tottii/EzRecorder/internal/tray"
	"github.com/yok-tottii/EzRecorder/internal/waveform"
)

const version = "1.0.0"

// 波形ビューの描画サイズ
const (
	waveformWidth  = 600
	waveformHeight = 120
)

// App holds all application state
type App struct {
	logger      *logger.Logger
	config      *config.Config
	configPath  string
	translator  *i18n.Translator
	notifier    *notification.NotificationManager
	loop        *scheduler.Loop
	view        *waveform.View
	audioDriver *audio.PortAudioDriver
	library     *library.Library
	recorder    *recording.Manager
	permChecker *permissions.PermissionChecker
	clipboard   *clipboard.Manager
	httpServer  *server.Server
	apiHandler  *api.Handler
	hotkeyMgr   *hotkey.Manager
	trayMgr     *tray.Manager

	stateMu   sync.Mutex
	recording bool
	playing   bool
	quitOnce  sync.Once
}

func init() {
	// macOSのCGO呼び出しにはメインスレッドが必要
	runtime.LockOSThread()
}

func main() {
	app := &App{}

	// 設定ファイルの読み込み
	app.configPath = config.GetConfigPath()
	var err error
	app.config, err = config.Load(app.configPath)
	if err != nil {
		log.Fatalf("設定ファイルの読み込みに失敗: %v", err)
	}

	// ロガーの初期化
	loggerConfig := logger.DefaultConfig()
	loggerConfig.Level = logger.ParseLevel(app.config.LogLevel)
	app.logger, err = logger.New(loggerConfig)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer app.logger.Close()

	app.logger.Info("EzRecorder v%s 起動", version)
	app.logger.Info("設定ファイルを読み込みました: %s", app.configPath)

	// 翻訳の初期化（通知はグローバル翻訳を使う）
	app.translator, err = i18n.NewDefaultTranslator(i18n.Language(app.config.UILanguage))
	if err != nil {
		log.Fatalf("翻訳の読み込みに失敗: %v", err)
	}
	i18n.GlobalTranslator = app.translator

	app.notifier = notification.NewNotificationManager(config.AppName)

	// UIループと波形ビュー
	app.loop = scheduler.NewLoop(256)
	app.loop.Start()
	app.view = waveform.NewView(app.config.WaveformCapacity, audio.MaxAmplitude,
		waveform.NewCanvas(waveformWidth, waveformHeight))

	// オーディオドライバの初期化
	app.audioDriver, err = audio.NewPortAudioDriver()
	if err != nil {
		app.logger.Error("PortAudioドライバの作成に失敗: %v", err)
		log.Fatalf("PortAudioドライバの作成に失敗: %v", err)
	}
	app.initAudio(app.config.AudioDeviceID, app.config.SampleRate)

	// 録音一覧の初期化
	recordingsDir, err := app.config.ResolveRecordingsDir()
	if err != nil {
		app.logger.Error("録音フォルダの準備に失敗: %v", err)
		log.Fatalf("録音フォルダの準備に失敗: %v", err)
	}
	app.library = library.New(library.Config{
		Dir:        recordingsDir,
		Extensions: app.config.Extensions,
	}, app.audioDriver, app.notifier, app.logger)
	if err := app.library.Refresh(); err != nil {
		app.logger.Warn("録音一覧の読み込みに失敗: %v", err)
	}
	app.logger.Info("録音フォルダ: %s", recordingsDir)

	// 録音マネージャーの初期化
	app.permChecker = permissions.NewPermissionChecker()
	app.recorder = recording.New(recording.Deps{
		Sessions:    app.audioDriver,
		Permissions: app.permChecker,
		Loop:        app.loop,
		Waveform:    app.view,
		Notifier:    app.notifier,
		Library:     app.library,
		Logger:      app.logger,
	}, recording.Config{
		Dir:            recordingsDir,
		MaxDuration:    app.config.MaxDuration(),
		SampleInterval: app.config.SampleInterval(),
	})

	app.clipboard = clipboard.NewManager()
	app.hotkeyMgr = hotkey.New()

	// HTTPサーバーの初期化
	serverConfig := server.DefaultConfig()
	serverConfig.Port = app.config.ServerPort
	app.httpServer = server.New(serverConfig, app.logger)
	app.apiHandler = api.New(api.Deps{
		Config:      app.config,
		ConfigPath:  app.configPath,
		Recorder:    app.recorder,
		Library:     app.library,
		Waveform:    app.view,
		Devices:     app.audioDriver,
		Clipboard:   app.clipboard,
		Permissions: app.permChecker,
		Notifier:    app.notifier,
		Logger:      app.logger,
	}, app.applySettings)

	// APIルートを登録
	app.apiHandler.RegisterRoutes(app.httpServer.GetMux())
	app.logger.Info("APIルート登録完了")

	// システムトレイマネージャーの作成
	app.trayMgr = tray.NewManager(tray.Config{
		Translator:     app.translator,
		Logger:         app.logger,
		OnReady:        app.onReady,
		OnToggleRecord: app.handleToggleRecord,
		OnOpen:         app.handleOpen,
		OnCopyLatest:   app.handleCopyLatest,
		OnOpenFolder:   app.handleOpenFolder,
		OnDeviceChange: app.handleDeviceChange,
		OnQuit:         app.handleQuit,
	})

	// 録音・再生状態をトレイに反映
	app.recorder.OnStateChange(func(status recording.Status) {
		app.stateMu.Lock()
		app.recording = status.State != recording.Idle
		app.stateMu.Unlock()
		app.updateTrayState()
	})
	app.library.Subscribe(func(snapshot library.Snapshot) {
		app.stateMu.Lock()
		app.playing = snapshot.Session != nil && snapshot.Session.State == library.Playing
		app.stateMu.Unlock()
		app.updateTrayState()
	})

	app.logger.Info("systray初期化開始")

	// systray.Run()を呼び出し - これはブロッキング呼び出し
	app.trayMgr.Run()
}

// onReady は systray が初期化完了後に呼ばれる
func (a *App) onReady() {
	a.logger.Info("systray初期化完了 - アプリケーション初期化開始")

	// 権限チェック（未確定は録音開始時に許可扱い）
	report := a.permChecker.CheckAllPermissions()
	if report.MicrophoneGranted {
		a.logger.Info("マイク権限: %s", report.Microphone)
	} else {
		a.logger.Warn("マイク権限: 未許可 - 録音はできません")
	}

	// ホットキーの登録
	a.registerHotkey()

	// デバイスメニュー
	a.refreshDeviceMenu()

	// HTTPサーバーを起動
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("HTTPサーバーの起動に失敗: %v", err)
	}

	// シグナルハンドリングを設定（Ctrl+Cでの適切な終了処理）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.logger.Info("終了シグナルを受信しました")
		a.handleQuit()
	}()

	a.logger.Info("アプリケーション初期化完了")

	// ターミナルに画面URLを常に表示
	fmt.Println("\n" + "==========================================================")
	fmt.Println("[起動] EzRecorder が起動しました")
	fmt.Println("==========================================================")
	fmt.Printf("[画面] URL: %s\n", a.httpServer.URL())
	fmt.Printf("[設定] ホットキー: %s\n", a.hotkeyMgr.GetConfig())
	fmt.Printf("[保存] 録音フォルダ: %s\n", a.library.Dir())
	fmt.Printf("[終了] Ctrl+C またはメニューから「終了」\n")
	fmt.Println("==========================================================" + "\n")
}

// initAudio は入力デバイスを設定する。見つからない場合はシステムデフォルトに戻す
func (a *App) initAudio(deviceID, sampleRate int) {
	audioConfig := audio.DefaultConfig()
	audioConfig.DeviceID = deviceID
	audioConfig.SampleRate = sampleRate

	if err := a.audioDriver.Initialize(audioConfig); err != nil {
		a.logger.Warn("オーディオデバイス %d の初期化に失敗: %v", deviceID, err)
		if deviceID == -1 {
			return
		}
		a.notifier.DeviceNotFound()
		audioConfig.DeviceID = -1
		if err := a.audioDriver.Initialize(audioConfig); err != nil {
			a.logger.Error("デフォルトデバイスの初期化に失敗: %v", err)
			return
		}
	}
	a.logger.Info("オーディオドライバ初期化完了 (デバイス: %d, %dHz)", audioConfig.DeviceID, audioConfig.SampleRate)
}

// registerHotkey は設定のホットキーを登録してイベントループを開始する
func (a *App) registerHotkey() {
	hotkeyConfig, err := hotkeyFromConfig(a.config)
	if err != nil {
		a.logger.Error("ホットキー設定が不正です: %v", err)
		return
	}

	if err := a.hotkeyMgr.Register(hotkeyConfig); err != nil {
		a.logger.Error("ホットキーの登録に失敗: %v", err)
		return
	}
	a.logger.Info("ホットキー登録完了: %s", hotkeyConfig)

	go a.hotkeyEventLoop(a.hotkeyMgr.Events())
}

// hotkeyEventLoop はホットキーイベントを処理するループ。押下ごとに録音を切り替える
func (a *App) hotkeyEventLoop(events <-chan hotkey.Event) {
	a.logger.Info("ホットキーイベントループ開始")

	for event := range events {
		if event.Type != hotkey.Pressed {
			continue
		}
		a.logger.Debug("ホットキー押下検出")
		a.handleToggleRecord()
	}

	a.logger.Info("ホットキーイベントループ終了")
}

// hotkeyFromConfig は設定からホットキーを組み立てる
func hotkeyFromConfig(cfg *config.Config) (hotkey.Config, error) {
	snapshot := cfg.Clone()
	hk := snapshot.Hotkey
	return hotkey.ParseConfig(hk.Ctrl, hk.Shift, hk.Alt, hk.Cmd, hk.Key)
}

// updateTrayState は録音を再生より優先してアイコンを決める
func (a *App) updateTrayState() {
	a.stateMu.Lock()
	state := tray.StateIdle
	switch {
	case a.recording:
		state = tray.StateRecording
	case a.playing:
		state = tray.StatePlaying
	}
	a.stateMu.Unlock()

	a.trayMgr.SetState(state)
}

// handleToggleRecord は録音を開始または停止する
func (a *App) handleToggleRecord() {
	path, err := a.recorder.Toggle()
	if err != nil {
		// 失敗は録音マネージャーが通知済み
		a.logger.Warn("録音の切り替えに失敗: %v", err)
		return
	}
	a.logger.Info("録音切り替え: %s", path)
}

// handleOpen はブラウザで画面を開く
func (a *App) handleOpen() {
	if !a.httpServer.IsRunning() {
		a.logger.Error("HTTPサーバーが起動していません")
		return
	}

	url := a.httpServer.URL()
	a.logger.Info("ブラウザを開きます: %s", url)

	// goroutineで非同期実行
	go func() {
		if err := exec.Command("open", url).Run(); err != nil {
			a.logger.Error("ブラウザの起動に失敗: %v", err)

			// フォールバック: ターミナルにURLを表示
			fmt.Printf("\n[警告] ブラウザが自動で開きませんでした\n")
			fmt.Printf("[情報] URL: %s\n\n", url)
		}
	}()
}

// handleCopyLatest は最新の録音のパスをクリップボードにコピーする
func (a *App) handleCopyLatest() {
	rec, err := a.library.Latest()
	if err != nil {
		a.logger.Info("コピーする録音がありません")
		a.notifier.NoRecordings()
		return
	}

	if err := a.clipboard.CopyPath(rec.Path); err != nil {
		a.logger.Error("クリップボードへのコピーに失敗: %v", err)
		return
	}
	a.notifier.PathCopied(rec.Path)
}

// handleOpenFolder は録音フォルダをFinderで開く
func (a *App) handleOpenFolder() {
	dir := a.library.Dir()
	go func() {
		if err := exec.Command("open", dir).Run(); err != nil {
			a.logger.Error("録音フォルダを開けませんでした: %v", err)
		}
	}()
}

// handleDeviceChange はメニューで選ばれた入力デバイスを保存して反映する
func (a *App) handleDeviceChange(deviceID int) {
	a.logger.Info("入力デバイス変更: %d", deviceID)

	if err := a.config.Update(map[string]interface{}{
		"audio_device_id": float64(deviceID),
	}); err != nil {
		a.logger.Error("デバイス設定の更新に失敗: %v", err)
		return
	}
	if err := a.config.Save(a.configPath); err != nil {
		a.logger.Error("設定ファイルの保存に失敗: %v", err)
	}
	if err := a.applySettings(a.config); err != nil {
		a.logger.Error("設定の反映に失敗: %v", err)
	}
}

// refreshDeviceMenu はデバイス一覧をトレイメニューに反映する
func (a *App) refreshDeviceMenu() {
	devices, err := a.audioDriver.ListDevices()
	if err != nil {
		a.logger.Warn("デバイス一覧の取得に失敗: %v", err)
		return
	}

	current := a.config.Clone().AudioDeviceID
	items := make([]tray.Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, tray.Device{
			ID:        d.ID,
			Name:      d.Name,
			IsDefault: d.IsDefault,
			IsCurrent: d.ID == current || (current == -1 && d.IsDefault),
		})
	}
	a.trayMgr.UpdateDeviceMenu(items)
}

// applySettings は保存済みの設定を実行中のアプリに反映する
func (a *App) applySettings(cfg *config.Config) error {
	snapshot := cfg.Clone()
	var errs []error

	a.logger.SetLevel(logger.ParseLevel(snapshot.LogLevel))

	// オーディオと録音
	a.initAudio(snapshot.AudioDeviceID, snapshot.SampleRate)
	dir, err := snapshot.ResolveRecordingsDir()
	if err != nil {
		errs = append(errs, err)
	} else {
		if err := a.library.Configure(library.Config{Dir: dir, Extensions: snapshot.Extensions}); err != nil {
			errs = append(errs, err)
		}
		a.recorder.Configure(recording.Config{
			Dir:            dir,
			MaxDuration:    snapshot.MaxDuration(),
			SampleInterval: snapshot.SampleInterval(),
		})
	}

	// 表示言語
	if lang := i18n.Language(snapshot.UILanguage); lang != a.translator.GetLanguage() {
		a.translator.SetLanguage(lang)
		a.trayMgr.Relabel()
	}
	a.refreshDeviceMenu()

	// ホットキーの再登録
	hotkeyConfig, err := hotkey.ParseConfig(snapshot.Hotkey.Ctrl, snapshot.Hotkey.Shift,
		snapshot.Hotkey.Alt, snapshot.Hotkey.Cmd, snapshot.Hotkey.Key)
	if err != nil {
		errs = append(errs, err)
	} else if hotkeyConfig.String() != a.hotkeyMgr.GetConfig().String() || !a.hotkeyMgr.IsRunning() {
		previous := a.hotkeyMgr.Events()
		if err := a.hotkeyMgr.Rebind(hotkeyConfig); err != nil {
			a.logger.Error("ホットキーの再登録に失敗: %v", err)
			errs = append(errs, err)
		} else {
			a.logger.Info("ホットキー再登録完了: %s", hotkeyConfig)
		}
		// Rebindは以前のホットキーを復元することがあるので、チャネルが変わっていればループを再開する
		if events := a.hotkeyMgr.Events(); a.hotkeyMgr.IsRunning() && events != previous {
			go a.hotkeyEventLoop(events)
		}
	}

	return errors.Join(errs...)
}

// handleQuit はアプリケーションを終了
func (a *App) handleQuit() {
	a.quitOnce.Do(func() {
		a.logger.Info("終了要求")

		a.apiHandler.Close()

		// HTTPサーバーを停止
		if a.httpServer.IsRunning() {
			if err := a.httpServer.Stop(); err != nil {
				a.logger.Error("HTTPサーバーの停止に失敗: %v", err)
			}
		}

		// 録音中なら保存してから終了
		if err := a.recorder.Close(); err != nil {
			a.logger.Error("録音の終了処理に失敗: %v", err)
		}
		if err := a.library.Close(); err != nil {
			a.logger.Error("再生の終了処理に失敗: %v", err)
		}

		if err := a.hotkeyMgr.Close(); err != nil {
			a.logger.Error("ホットキーの解除に失敗: %v", err)
		}

		a.loop.Stop()

		// オーディオドライバをクローズ
		if err := a.audioDriver.Close(); err != nil {
			a.logger.Error("オーディオドライバの終了に失敗: %v", err)
		}

		a.logger.Info("アプリケーション終了")
		a.trayMgr.Quit() // systray.Quit()を呼び出してsystray.Run()を終了
	})
}
