package executor

import (
	"context"
	"io"
	"sync"

	"github.com/smnsjas/go-shellcore/objects"
	"github.com/smnsjas/go-shellcore/pipeline"
	"github.com/smnsjas/go-shellcore/serialization"
	"github.com/smnsjas/go-shellcore/streams"
)

// AsyncIO bundles the external channels of an asynchronous invocation: an
// optional input deserializer and the output and error serializers.
type AsyncIO struct {
	Input  serialization.Deserializer
	Output serialization.Serializer
	Error  serialization.Serializer
}

// ExecuteCommandAsync invokes text with stage execution on a dedicated
// goroutine while output and error objects stream to the serializers as they
// are produced. The call blocks until the pipeline reaches a terminal state,
// so it is observably synchronous to its caller.
//
// Asynchronous invocation assumes a top-level pipeline; calling this on an
// executor configured for nested pipelines is a programming error.
//
// On failure the reason is serialized as an error record when an error
// serializer is present, otherwise returned; severe failures are always
// returned, never serialized away.
func (e *Executor) ExecuteCommandAsync(ctx context.Context, text string, opts Options, hostIO AsyncIO) error {
	if e.usesNestedPipelines {
		panic("executor: asynchronous invocation on a nested-pipeline executor")
	}

	p := e.builder.Build(text, opts&AddToHistory != 0, false)
	if opts&AddOutputter != 0 {
		e.wireOutputter(p)
	}

	guard := e.reg.Enter(e.session, e)
	e.attach(p)
	defer func() {
		e.Reset()
		guard.Exit()
	}()

	var errSer serialization.Serializer
	if hostIO.Error != nil {
		errSer = serialization.NewErrorRecordSerializer(hostIO.Error)
	}

	// Each stream gets a drain goroutine woken by its data-ready channel.
	// The producer side only performs a non-blocking notify, so the pipeline
	// never waits on the host.
	var drainWG sync.WaitGroup
	if hostIO.Output != nil {
		drainWG.Add(1)
		go e.drainStream(p.Output(), p.Done(), hostIO.Output, &drainWG)
	}
	if errSer != nil {
		drainWG.Add(1)
		go e.drainStream(p.Errors(), p.Done(), errSer, &drainWG)
	}

	e.logger.Debug("invoking pipeline async", "id", p.ID(), "stages", len(p.Stages()))
	if err := p.InvokeAsync(ctx); err != nil {
		drainWG.Wait()
		return e.finishAsync(err, errSer)
	}

	if opts&ReadInputObjects != 0 && hostIO.Input != nil {
		e.feedInput(p, hostIO.Input)
	}
	p.Input().Close()

	<-p.Done()
	drainWG.Wait()

	var reason error
	if p.State() == pipeline.StateFailed {
		reason = p.Reason()
	}
	e.logger.Debug("pipeline finished async", "id", p.ID(), "state", p.State())
	return e.finishAsync(reason, errSer)
}

// feedInput deserializes external objects into the pipeline's input stream
// until end-of-input, the null sentinel, or pipeline closure. A write racing
// pipeline completion just ends the feed; it is not an error.
func (e *Executor) feedInput(p *pipeline.Pipeline, dec serialization.Deserializer) {
	for {
		obj, err := dec.Deserialize()
		if err != nil {
			if err != io.EOF {
				e.logger.Debug("input feed ended", "id", p.ID(), "err", err)
			}
			return
		}
		if obj == nil {
			return
		}
		if werr := p.Input().Write(obj); werr != nil {
			return
		}
	}
}

// drainStream forwards buffered stream objects to ser on every data-ready
// wakeup, with a final sweep once the pipeline is terminal.
func (e *Executor) drainStream(s *streams.Stream, done <-chan struct{}, ser serialization.Serializer, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-s.Ready():
			e.serializeBuffered(s, ser)
		case <-done:
			e.serializeBuffered(s, ser)
			return
		}
	}
}

func (e *Executor) serializeBuffered(s *streams.Stream, ser serialization.Serializer) {
	for _, obj := range s.NonBlockingRead() {
		if err := ser.Serialize(obj); err != nil {
			e.logger.Error("serialize pipeline object", "err", err)
		}
	}
}

// finishAsync converts a terminal failure into the caller-visible outcome,
// classifying severe failures before anything is suppressed.
func (e *Executor) finishAsync(reason error, errSer serialization.Serializer) error {
	if reason == nil {
		return nil
	}
	if objects.IsSevere(reason) {
		return reason
	}
	if errSer != nil {
		if err := errSer.Serialize(reason); err != nil {
			return err
		}
		return nil
	}
	return reason
}
