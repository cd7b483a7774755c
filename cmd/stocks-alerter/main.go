package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/STTM-NSU/stocks-alerter/internal/config"
	"github.com/STTM-NSU/stocks-alerter/internal/detector"
	"github.com/STTM-NSU/stocks-alerter/internal/handler"
	"github.com/STTM-NSU/stocks-alerter/internal/history"
	"github.com/STTM-NSU/stocks-alerter/internal/instruments"
	"github.com/STTM-NSU/stocks-alerter/internal/journal"
	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/postgres"
	"github.com/STTM-NSU/stocks-alerter/internal/provider/tinvest"
	"github.com/STTM-NSU/stocks-alerter/internal/server"
	"github.com/STTM-NSU/stocks-alerter/internal/sink"
	"github.com/STTM-NSU/stocks-alerter/internal/subscription"
	"github.com/STTM-NSU/stocks-alerter/internal/trace"
	"github.com/joho/godotenv"
	"github.com/russianinvestments/invest-api-go-sdk/investgo"
)

const (
	_investCfgFilePath  = "./configs/invest.yaml"
	_alerterCfgFilePath = "./configs/config.yaml"

	_alertChannelCap = 100
)

func main() {
	envErr := godotenv.Load()

	alerterCfg, err := config.LoadAlerterConfig(_alerterCfgFilePath)
	if err != nil {
		log.Fatalf("%s: can't load alerter cfg", err)
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.Level(alerterCfg.LogLevel))
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if envErr != nil {
		zapLogger.Debugf("%s: .env is not loaded", envErr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := trace.Init(alerterCfg.TracingEnabled); err != nil {
		zapLogger.Errorf("%s: can't init tracing", err)
	}
	defer func() {
		if err := trace.Shutdown(context.Background()); err != nil {
			zapLogger.Errorf("%s: can't shutdown tracing", err)
		}
	}()

	investCfg, err := config.LoadInvestConfig(_investCfgFilePath)
	if err != nil {
		zapLogger.Fatalf("%s: can't load invest cfg", err)
	}

	investClient, err := investgo.NewClient(ctx, investCfg, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't create invest client", err)
	}
	defer func() {
		if err := investClient.Stop(); err != nil {
			zapLogger.Errorf("%s: can't stop invest client", err)
		}
	}()

	registry, err := instruments.Load(ctx, tinvest.NewCatalog(investClient), alerterCfg.InstrumentType, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: can't load instruments", err)
	}

	conn, err := tinvest.Dial(investCfg)
	if err != nil {
		zapLogger.Fatalf("%s: can't dial market data streams", err)
	}
	defer conn.Close()

	// Sinks outlive ctx so the final status still gets delivered.
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	var sinksWg sync.WaitGroup

	eventLog := sink.NewEventLog(alerterCfg.EventLogSize)
	hub := sink.NewHub(zapLogger)
	sinks := []sink.EventSink{sink.NewConsole(zapLogger), eventLog, hub}

	if alerterCfg.Telegram.Enabled {
		bot, err := sink.NewBotAPI(alerterCfg.Telegram.Token)
		if err != nil {
			zapLogger.Fatalf("%s", err)
		}
		tg := sink.NewTelegram(bot, sink.TelegramConfig{
			ClientChannelId:  alerterCfg.Telegram.ClientChannelId,
			ServiceChannelId: alerterCfg.Telegram.ServiceChannelId,
			QueueSize:        alerterCfg.Telegram.QueueSize,
		}, zapLogger)
		sinks = append(sinks, tg)

		sinksWg.Add(1)
		go func() {
			defer sinksWg.Done()
			tg.Run(sinkCtx)
		}()
	}

	var alertJournal handler.AlertJournal
	if redisCfg := alerterCfg.Journal.Redis; redisCfg.Enabled {
		redisJournal := journal.NewRedis(journal.NewRedisClient(redisCfg.Addr), redisCfg.Key, redisCfg.MaxLen, zapLogger)
		if err := redisJournal.Ping(ctx); err != nil {
			zapLogger.Warnf("%s: redis journal is unavailable at startup", err)
		}
		defer redisJournal.Close()
		sinks = append(sinks, redisJournal)
		alertJournal = redisJournal
	}

	if pgJournalCfg := alerterCfg.Journal.Postgres; pgJournalCfg.Enabled {
		pgConfig := postgres.NewConfigFromEnv().Setup()
		zapLogger.Debugf("trying to connect to db with: %s", pgConfig)
		db, err := postgres.NewDB(ctx, pgConfig)
		if err != nil {
			zapLogger.Fatalf("%s: can't connect to db", err)
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			zapLogger.Fatalf("%s: can't migrate db", err)
		}

		stmt, err := postgres.PrepareInsertAlert(ctx, db)
		if err != nil {
			zapLogger.Fatalf("%s: can't prepare stmt", err)
		}
		defer stmt.Close()

		pgJournal := journal.NewPostgres(stmt, pgJournalCfg.Workers, _alertChannelCap, zapLogger)
		sinks = append(sinks, pgJournal)

		sinksWg.Add(1)
		go func() {
			defer sinksWg.Done()
			pgJournal.Run(sinkCtx)
		}()
	}

	eventSink := sink.Compose(sinks...)

	store := history.NewStore(history.Config{
		CompactionTrigger: alerterCfg.HistoryCompactionTrigger,
		CompactionTarget:  alerterCfg.HistoryCompactionTarget,
	})
	manager := subscription.NewManager(subscription.Config{
		MaxConcurrentStreams:    alerterCfg.MaxConcurrentStreams,
		MaxInstrumentsPerStream: alerterCfg.MaxInstrumentsPerStream,
		Interval:                alerterCfg.SchedulingInterval(),
	},
		registry,
		tinvest.NewMarketData(conn),
		store,
		detector.New(alerterCfg.PercentChangeThreshold, alerterCfg.LookbackMinutes),
		eventSink,
		zapLogger,
	)

	eventSink.NotifyStatus(ctx, "App started")
	eventSink.NotifyStatus(ctx, fmt.Sprintf("Assets count: %d", registry.Len()))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.Run(ctx)
	}()

	h := handler.NewHandler(manager, registry, store, eventLog, alertJournal, hub, zapLogger)
	srv := server.NewHTTPServer(alerterCfg.Port, h.InitRoutes())

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatalf("can't start server: %s", err)
		}
	}()
	zapLogger.Infof("started server on port %s", alerterCfg.Port)

	<-ctx.Done()
	zapLogger.Infoln("shutdown server")

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Errorf("can't shutdown server: %s", err)
	}
	wg.Wait()

	eventSink.NotifyStatus(sinkCtx, "App complete")
	stopSinks()
	sinksWg.Wait()
}
