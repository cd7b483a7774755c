package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
)

// NamedExecer is satisfied by *sqlx.NamedStmt.
type NamedExecer interface {
	ExecContext(ctx context.Context, arg any) (sql.Result, error)
}

// Postgres persists alerts through a pool of writers fed round-robin from
// one intake channel. Alerts that arrive while the intake is full are dropped.
type Postgres struct {
	stmt   NamedExecer
	mainCh chan model.AlertEvent
	chs    []chan model.AlertEvent

	logger logger.Logger
}

func NewPostgres(stmt NamedExecer, poolSize, chSize int, logger logger.Logger) *Postgres {
	if poolSize <= 0 {
		poolSize = 1
	}
	if chSize <= 0 {
		chSize = 100
	}

	chs := make([]chan model.AlertEvent, poolSize)
	for i := range chs {
		chs[i] = make(chan model.AlertEvent, chSize)
	}

	return &Postgres{
		stmt:   stmt,
		mainCh: make(chan model.AlertEvent, chSize),
		chs:    chs,
		logger: logger,
	}
}

func (p *Postgres) NotifyAlert(_ context.Context, alert model.AlertEvent) {
	select {
	case p.mainCh <- alert:
	default:
		p.logger.Warnf("postgres journal is full, drop alert %s", alert.Id)
	}
}

func (p *Postgres) NotifyStatus(context.Context, string) {}

// Run dispatches alerts to the writers until ctx is done. Writers finish
// whatever is already queued to them before Run returns.
func (p *Postgres) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range p.chs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.write(p.chs[i])
		}()
	}
	defer func() {
		for i := range p.chs {
			close(p.chs[i])
		}
		wg.Wait()
	}()

	getPartitionFunc := roundRobinPartitionFunc(len(p.chs))

	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-p.mainCh:
			p.chs[getPartitionFunc()] <- alert
		}
	}
}

func (p *Postgres) write(ch <-chan model.AlertEvent) {
	for alert := range ch {
		if err := p.save(alert); err != nil {
			p.logger.Errorf("%s: can't save alert %s for %s", err, alert.Id, alert.Ticker)
		}
	}
}

func (p *Postgres) save(alert model.AlertEvent) error {
	if _, err := p.stmt.ExecContext(context.Background(), alert); err != nil {
		return fmt.Errorf("%w: can't exec stmt", err)
	}
	p.logger.Debugf("save alert to db: [%s %s]", alert.Id, alert.Ticker)
	return nil
}

func roundRobinPartitionFunc(partitionsN int) func() int {
	n := 0
	return func() int {
		n++
		return n % partitionsN
	}
}
