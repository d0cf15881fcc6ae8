// Package workload drives a representative client program against the
// runtime: a frame timer feeding the retrace event, an app thread that
// builds heap-backed frame payloads, a renderer that consumes and frees
// them, and host-side feeders simulating peripheral completion.
package workload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"relic/internal/arena"
	"relic/internal/config"
	"relic/internal/kernel"
)

// Stats summarizes one workload run.
type Stats struct {
	Frames      int
	Peripherals int
	AllocPeak   int
	HeapLeak    int
	Elapsed     time.Duration
}

const (
	priVsync  = 200
	priDMA    = 140
	priRender = 120
	priApp    = 100
)

type runState struct {
	mu          sync.Mutex
	frames      int
	peripherals int
	allocPeak   int
	errs        []error
}

func (s *runState) fail(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *runState) firstErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	return nil
}

// Run executes the demo program on an already-booted kernel and reports
// what happened. It creates its own heap, queues, timer, event
// registrations and threads, and tears the threads down before returning.
// onFrame, if non-nil, is called from the render thread after every
// completed frame.
func Run(ctx context.Context, k *kernel.Kernel, cfg config.WorkloadConfig, onFrame func(done, total int)) (Stats, error) {
	start := time.Now()
	st := &runState{}

	heap, err := arena.New(make([]byte, cfg.HeapKB*1024))
	if err != nil {
		return Stats{}, fmt.Errorf("workload heap: %w", err)
	}

	tickQ, err := k.NewQueue("tick", make([]kernel.Message, cfg.QueueSize))
	if err != nil {
		return Stats{}, err
	}
	retraceQ, err := k.NewQueue("retrace", make([]kernel.Message, cfg.QueueSize))
	if err != nil {
		return Stats{}, err
	}
	frameQ, err := k.NewQueue("frame", make([]kernel.Message, cfg.QueueSize))
	if err != nil {
		return Stats{}, err
	}
	dmaQ, err := k.NewQueue("dma", make([]kernel.Message, cfg.QueueSize))
	if err != nil {
		return Stats{}, err
	}

	if err := k.SetEventMessage(kernel.EventRetrace, retraceQ, "retrace"); err != nil {
		return Stats{}, err
	}
	if err := k.SetEventMessage(kernel.EventPeripheral, dmaQ, "dma"); err != nil {
		return Stats{}, err
	}

	frames := cfg.Frames
	interval := k.CountsFor(cfg.FrameInterval())

	// vsync: the timer lands in tickQ; each tick becomes a retrace raise,
	// the same shape the original interrupt handler had.
	vsyncDone := make(chan struct{})
	vsync, err := k.CreateThread("vsync", priVsync, func(any) {
		defer close(vsyncDone)
		for i := 0; i < frames; i++ {
			if _, err := tickQ.Recv(kernel.Block); err != nil {
				st.fail(fmt.Errorf("vsync recv: %w", err))
				return
			}
			if err := k.RaiseEvent(kernel.EventRetrace); err != nil {
				st.fail(fmt.Errorf("vsync raise: %w", err))
				return
			}
		}
	}, nil)
	if err != nil {
		return Stats{}, err
	}

	// app: one frame payload per retrace, allocated from the heap and
	// handed to the renderer by pointer.
	app, err := k.CreateThread("app", priApp, func(any) {
		for i := 0; i < frames; i++ {
			if _, err := retraceQ.Recv(kernel.Block); err != nil {
				st.fail(fmt.Errorf("app recv: %w", err))
				return
			}
			p, err := heap.Alloc(64 + (i%4)*32)
			if err != nil {
				st.fail(fmt.Errorf("frame %d alloc: %w", i, err))
				return
			}
			buf, err := heap.Slice(p)
			if err != nil {
				st.fail(fmt.Errorf("frame %d slice: %w", i, err))
				return
			}
			for j := range buf {
				buf[j] = byte(i + j)
			}
			st.notePeak(heap.Stats().Used)
			if err := frameQ.Send(p, kernel.Block); err != nil {
				st.fail(fmt.Errorf("frame %d send: %w", i, err))
				return
			}
		}
	}, nil)
	if err != nil {
		return Stats{}, err
	}

	// render: consumes frames, verifies the payload and frees it.
	renderDone := make(chan struct{})
	render, err := k.CreateThread("render", priRender, func(any) {
		defer close(renderDone)
		for i := 0; i < frames; i++ {
			msg, err := frameQ.Recv(kernel.Block)
			if err != nil {
				st.fail(fmt.Errorf("render recv: %w", err))
				return
			}
			p, ok := msg.(arena.Ptr)
			if !ok {
				st.fail(fmt.Errorf("render: frame %d is %T, not a heap pointer", i, msg))
				return
			}
			buf, err := heap.Slice(p)
			if err != nil {
				st.fail(fmt.Errorf("render slice: %w", err))
				return
			}
			var sum byte
			for _, b := range buf {
				sum += b
			}
			_ = sum
			if err := heap.Free(p); err != nil {
				st.fail(fmt.Errorf("render free: %w", err))
				return
			}
			st.mu.Lock()
			st.frames++
			done := st.frames
			st.mu.Unlock()
			if onFrame != nil {
				onFrame(done, frames)
			}
		}
	}, nil)
	if err != nil {
		return Stats{}, err
	}

	// dma: drains peripheral-completion raises until the run winds down.
	dmaTimeout := k.CountsFor(50 * time.Millisecond)
	dmaDone := make(chan struct{})
	dma, err := k.CreateThread("dma", priDMA, func(any) {
		defer close(dmaDone)
		for {
			_, err := dmaQ.RecvTimeout(dmaTimeout)
			if err != nil {
				// Silence means the feeders finished.
				return
			}
			st.mu.Lock()
			st.peripherals++
			st.mu.Unlock()
		}
	}, nil)
	if err != nil {
		return Stats{}, err
	}

	for _, id := range []kernel.ThreadID{vsync, dma, render, app} {
		if err := k.StartThread(id); err != nil {
			return Stats{}, err
		}
	}

	timer, err := k.SetTimer(0, interval, tickQ, "tick")
	if err != nil {
		return Stats{}, err
	}
	defer timer.Stop()

	// Host-side feeders simulate peripheral completion interrupts.
	feeders, _ := errgroup.WithContext(ctx)
	for f := 0; f < cfg.Feeders; f++ {
		feeders.Go(func() error {
			for i := 0; i < frames/2; i++ {
				if err := k.RaiseEvent(kernel.EventPeripheral); err != nil {
					return err
				}
				select {
				case <-time.After(cfg.FrameInterval()):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	deadline := time.Duration(frames+20) * cfg.FrameInterval() * 4
	for _, wait := range []<-chan struct{}{vsyncDone, renderDone} {
		select {
		case <-wait:
		case <-ctx.Done():
			return Stats{}, ctx.Err()
		case <-time.After(deadline):
			return Stats{}, fmt.Errorf("workload stalled after %v", time.Since(start))
		}
	}
	timer.Stop()
	if err := feeders.Wait(); err != nil {
		return Stats{}, err
	}
	select {
	case <-dmaDone:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-time.After(deadline):
		return Stats{}, fmt.Errorf("dma thread stalled")
	}

	for _, id := range []kernel.ThreadID{vsync, app, render, dma} {
		_ = k.StopThread(id)
		if err := k.DestroyThread(id); err != nil {
			return Stats{}, fmt.Errorf("teardown: %w", err)
		}
	}

	if err := st.firstErr(); err != nil {
		return Stats{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return Stats{
		Frames:      st.frames,
		Peripherals: st.peripherals,
		AllocPeak:   st.allocPeak,
		HeapLeak:    heap.Stats().Used,
		Elapsed:     time.Since(start),
	}, nil
}

func (s *runState) notePeak(used int) {
	s.mu.Lock()
	if used > s.allocPeak {
		s.allocPeak = used
	}
	s.mu.Unlock()
}
