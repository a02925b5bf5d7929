package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/flipbook/internal/config"
	"github.com/ivlev/flipbook/internal/export"
	"github.com/ivlev/flipbook/internal/session"
	"github.com/ivlev/flipbook/internal/source"
	"github.com/ivlev/flipbook/internal/stream"
	"github.com/ivlev/flipbook/internal/system"
	"github.com/ivlev/flipbook/internal/thumbnail"
	"github.com/ivlev/flipbook/internal/timeline"
	"github.com/ivlev/flipbook/internal/video"
)

var buildVersion = "dev"

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	// Создаем нужные директории, если их нет
	for _, d := range []string{"input/pdf", "output"} {
		os.MkdirAll(d, 0755)
	}

	inputPtr := flag.String("input", "", "Путь к PDF или папке с изображениями (по умолчанию: самый свежий файл в input/pdf/)")
	configPtr := flag.String("config", "", "Файл настроек (по умолчанию: <user config>/flipbook/conf.yaml)")
	dpiPtr := flag.Int("dpi", 150, "DPI для страниц PDF")
	fpsPtr := flag.Int("fps", 0, "Кадров в секунду (0 - из настроек)")
	onionPtr := flag.Bool("onion", false, "Включить onion skin")
	loopPtr := flag.Bool("loop", false, "Зациклить воспроизведение")
	playPtr := flag.Bool("play", false, "Проиграть анимацию один раз и выйти")
	exportPtr := flag.String("export", "", "Экспорт и выход: gif, sprite, mp4")
	outputPtr := flag.String("output", "", "Путь результата экспорта (если пусто, генерируется в output/)")
	widthPtr := flag.Int("width", 0, "Ширина кадра экспорта (0 - размер холста)")
	heightPtr := flag.Int("height", 0, "Высота кадра экспорта (0 - размер холста)")
	backgroundPtr := flag.String("background", "", "Цвет фона экспорта #rrggbb (пусто - прозрачный)")
	qualityPtr := flag.Int("quality", 0, "Качество видео (0 - авто)")
	workersPtr := flag.Int("workers", 0, "Потоки (0 - по числу ядер и свободной памяти)")
	mqttURLPtr := flag.String("mqtt-url", "", "MQTT брокер для публикации активного кадра, например tcp://localhost:1883")
	mqttTopicPtr := flag.String("mqtt-topic", stream.DefaultTopic, "MQTT топик")
	statsPtr := flag.Bool("stats", false, "Показать потребление памяти в конце")

	flag.Parse()

	cfg := config.Config{
		InputPath:    *inputPtr,
		SettingsPath: *configPtr,
		DPI:          *dpiPtr,
		FPS:          *fpsPtr,
		Onion:        *onionPtr,
		Loop:         *loopPtr,
		Play:         *playPtr,
		Workers:      *workersPtr,
		ExportFormat: strings.ToLower(*exportPtr),
		OutputPath:   *outputPtr,
		Width:        *widthPtr,
		Height:       *heightPtr,
		Background:   *backgroundPtr,
		Quality:      *qualityPtr,
		MQTTURL:      *mqttURLPtr,
		MQTTTopic:    *mqttTopicPtr,
		ShowStats:    *statsPtr,
		BuildVersion: buildVersion,
	}

	if err := run(cfg); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.InputPath == "" {
		latest, err := system.FindLatestPDF("input/pdf")
		if err != nil {
			return fmt.Errorf("%v. Положите PDF в input/pdf/ или укажите -input", err)
		}
		cfg.InputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", cfg.InputPath)
	}

	var src source.Source
	var err error
	if strings.HasSuffix(strings.ToLower(cfg.InputPath), ".pdf") {
		src, err = source.NewFitzPDFSource(cfg.InputPath)
	} else {
		src, err = source.NewImageSource(cfg.InputPath)
	}
	if err != nil {
		return fmt.Errorf("инициализация источника: %w", err)
	}
	defer src.Close()

	importWorkers := cfg.Workers
	if importWorkers <= 0 {
		importWorkers = system.DefaultWorkers(0)
	}
	start := time.Now()
	img, err := source.Load(ctx, src, cfg.DPI, importWorkers)
	if err != nil {
		return err
	}
	fmt.Printf("[*] Источник: %s | Кадров: %d | Холст: %dx%d | %.2fs\n",
		cfg.InputPath, src.PageCount(), img.Bounds().Dx(), img.Bounds().Dy(), time.Since(start).Seconds())

	store := config.NewStore(cfg.SettingsPath)
	settings, _ := store.Load()
	if cfg.FPS > 0 {
		settings.FrameRate = cfg.FPS
	}
	settings = settings.Clamp()
	cfg.FPS = settings.FrameRate

	thumbs := thumbnail.New(img, thumbnail.DefaultSize)
	tl, err := timeline.New(img,
		timeline.WithPreviewer(thumbs),
		timeline.WithOnionSkin(settings.OnionSkin(cfg.Onion)),
	)
	if err != nil {
		return err
	}

	if cfg.MQTTURL != "" {
		client, err := stream.Dial(cfg.MQTTURL, "flipbook-"+buildVersion)
		if err != nil {
			log.Printf("[!] MQTT недоступен: %v", err)
		} else {
			pub := stream.NewPublisher(client, cfg.MQTTTopic)
			defer pub.Close()
			tl.AddObserver(pub)
			fmt.Printf("[*] Публикация кадров в %s (%s)\n", cfg.MQTTURL, cfg.MQTTTopic)
		}
	}

	cfg.VideoEncoder = system.GetBestH264Encoder()
	if cfg.VideoEncoder != "libx264" {
		fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
	}
	exporter := export.New(tl, img, img.Bounds(), cfg.ExportParams(), &video.FFmpegEncoder{})

	sess, err := session.New(tl, session.Options{
		Settings: settings,
		Store:    store,
		Exporter: exporter,
		Previews: thumbs,
		Onion:    cfg.Onion,
		Loop:     cfg.Loop,
		Out:      os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Printf("[!] Не удалось сохранить настройки: %v", err)
		}
		if cfg.ShowStats {
			if s, err := system.Stats(); err == nil {
				fmt.Printf("[*] %s\n", s)
			}
		}
	}()

	switch {
	case cfg.ExportFormat != "":
		output := cfg.OutputPath
		if output == "" {
			output = defaultOutput(cfg.InputPath, cfg.ExportFormat)
		}
		start := time.Now()
		if err := exporter.Run(ctx, cfg.ExportFormat, output); err != nil {
			return fmt.Errorf("экспорт: %w", err)
		}
		fmt.Printf("[+++] Успех! Результат: %s (%.2fs)\n", output, time.Since(start).Seconds())
		return nil

	case cfg.Play:
		return interrupted(sess.Player().Play(ctx))
	}

	fmt.Println("[*] Введите help для списка команд")
	return interrupted(sess.Run(ctx, os.Stdin))
}

// interrupted treats Ctrl+C as a normal exit.
func interrupted(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func defaultOutput(input, format string) string {
	ext := format
	if format == export.FormatSprite {
		ext = "png"
	}
	baseName := filepath.Base(strings.TrimSuffix(input, string(filepath.Separator)))
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.%s", cleanName, timestamp, ext))
}
