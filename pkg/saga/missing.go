package saga

import "context"

// missingPipe is handed to Policy.Missing. Once the downstream pipe has
// processed the new instance it is added to the store, unless it was completed.
type missingPipe[T Instance] struct {
	conn Gateway[T]
	next Pipe[T]
	log  Logger
}

func (p *missingPipe[T]) Send(ctx context.Context, cc *ConsumeContext[T]) error {
	if cc.IsCompleted() {
		return nil
	}

	inst := cc.Saga()
	p.log.Debug("saga added",
		"saga", TypeName(inst),
		"message", TypeName(cc.Message()),
		"correlation_id", inst.CorrelationID())

	proxy := &ConsumeContext[T]{saga: inst, msg: cc.Message(), log: p.log}
	if err := p.next.Send(ctx, proxy); err != nil {
		return err
	}

	if proxy.IsCompleted() {
		return nil
	}

	return p.conn.Store(ctx, proxy.Saga())
}
