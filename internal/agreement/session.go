// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package agreement

import (
	"context"
	"io"
	"time"

	"github.com/389ds/replcore/internal/changelog"
	"github.com/389ds/replcore/internal/csn"
	"github.com/389ds/replcore/internal/ruv"
	"github.com/389ds/replcore/internal/util/msort"
	"github.com/389ds/replcore/internal/util/notify"
	"github.com/389ds/replcore/internal/util/stopper"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// A Session drives one outbound replication agreement's state
// machine to completion (or until shutdown). It is not safe for
// concurrent use from more than one goroutine; Notify is the only
// method meant to be called from elsewhere.
type Session struct {
	Name    string
	Dialect Dialect
	Config  Config

	now   func() time.Time
	state State
	ev    notify.Var[Events]

	backoff      *Backoff
	backoffUntil time.Time
	peerRUV      *ruv.Ruv

	numChangesSent int
	lastStatus     string
}

// NewSession returns a Session ready to Run.
func NewSession(name string, dialect Dialect, cfg Config) *Session {
	return &Session{Name: name, Dialect: dialect, Config: cfg, now: time.Now, state: Start}
}

// Notify raises e for the running session; events are coalesced, so
// raising the same bit twice before it is observed has no additional
// effect. Safe to call concurrently with Run.
func (s *Session) Notify(e Events) {
	s.ev.Update(func(cur Events) Events { return cur | e })
}

// LastStatus returns a short human-readable description of the most
// recently completed session phase, the rough analogue of
// agmt.last_update_status.
func (s *Session) LastStatus() string { return s.lastStatus }

// Run drives the state machine until ctx is stopped or a terminal
// state not reachable from Start is entered. It is the supervised
// entry point: callers launch it with ctx.Go(func() error { return
// sess.Run(ctx) }).
func (s *Session) Run(ctx *stopper.Context) error {
	for {
		select {
		case <-ctx.Stopping():
			s.drain(ctx)
			return nil
		default:
		}

		if s.drainShutdown() {
			s.drain(ctx)
			return nil
		}

		next := s.step(ctx)
		if next != s.state {
			log.WithFields(log.Fields{"agreement": s.Name, "from": s.state, "to": next}).Debug("agreement: state transition")
			agreementStateTransitions.WithLabelValues(s.Name).Inc()
		}
		s.state = next

		if s.state.IsTerminal() && s.state != StopFatalError && s.state != StopFatalErrorPart2 {
			return nil
		}
	}
}

func (s *Session) drainShutdown() bool {
	cur := s.ev.Peek()
	return cur.Has(ProtocolShutdown)
}

func (s *Session) drain(ctx context.Context) {
	s.Dialect.ReleaseReplica(ctx)
	s.state = StopNormalTermination
}

// step executes exactly one state's logic and returns the next state.
func (s *Session) step(ctx context.Context) State {
	switch s.state {
	case Start:
		return s.runStart()
	case WaitWindowOpen:
		return s.runWaitWindowOpen()
	case WaitChanges:
		return s.runWaitChanges()
	case ReadyToAcquire:
		return s.runReadyToAcquire(ctx)
	case BackoffStart:
		return s.runBackoffStart()
	case Backoff:
		return s.runBackoff()
	case SendingUpdates:
		return s.runSendingUpdates(ctx)
	case StopFatalError:
		return s.runStopFatalError(ctx)
	case StopFatalErrorPart2:
		return s.runStopFatalErrorPart2()
	default:
		return s.state
	}
}

func (s *Session) consume(e Events) {
	s.ev.Update(func(cur Events) Events { return cur &^ e })
}

func (s *Session) runStart() State {
	s.ev.Set(0)
	s.backoff = nil
	if s.Config.InSchedule(s.now()) {
		return ReadyToAcquire
	}
	return WaitWindowOpen
}

func (s *Session) runWaitWindowOpen() State {
	cur, woken := s.ev.Get()
	switch {
	case cur.Has(ReplicateNow):
		s.consume(ReplicateNow)
		return ReadyToAcquire
	case cur.Has(AgreementChanged):
		s.consume(AgreementChanged)
		return Start
	case cur.Has(WindowOpened):
		s.consume(WindowOpened)
		return ReadyToAcquire
	case cur.Has(ProtocolShutdown):
		return s.state
	default:
		<-woken
		return s.state
	}
}

func (s *Session) runWaitChanges() State {
	cur, woken := s.ev.Get()
	switch {
	case cur.Has(ReplicateNow):
		s.consume(ReplicateNow)
		return ReadyToAcquire
	case cur.Has(AgreementChanged):
		s.consume(AgreementChanged)
		return Start
	case cur.Has(WindowClosed):
		s.consume(WindowClosed)
		return WaitWindowOpen
	case cur.Has(ChangeAvailable):
		s.consume(ChangeAvailable)
		return ReadyToAcquire
	case cur.Has(WindowOpened), cur.Has(BackoffExpired):
		log.WithField("agreement", s.Name).Warn("agreement: unexpected event in WaitChanges")
		s.consume(WindowOpened | BackoffExpired)
		return s.state
	case cur.Has(ProtocolShutdown):
		return s.state
	default:
		<-woken
		return s.state
	}
}

func (s *Session) runReadyToAcquire(ctx context.Context) State {
	res := s.Dialect.AcquireReplica(ctx)
	switch res.Outcome {
	case AcquireSuccess:
		s.peerRUV = res.PeerRUV
		s.numChangesSent = 0
		s.backoff = nil
		s.lastStatus = "acquired replica"
		return SendingUpdates
	case AcquireBusy:
		wait := res.BusyWait
		if wait <= 0 {
			wait = s.Config.BusyWaitTime
		}
		if wait < s.Config.BusyBackoffMinimum {
			wait = s.Config.BusyBackoffMinimum
		}
		s.backoff = NewFixedBackoff(wait, s.Config.BusyWaitTime)
		s.lastStatus = "replica busy: " + res.CurrentPurl
		return BackoffStart
	case AcquireConsumerUpToDate:
		s.lastStatus = "consumer up to date"
		return WaitChanges
	case AcquireTransientError:
		if s.backoff == nil || s.backoff.fixed {
			s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
		}
		s.lastStatus = "transient acquire error"
		return BackoffStart
	case AcquireFatalError:
		s.lastStatus = "fatal acquire error"
		return StopFatalError
	default:
		return StopFatalError
	}
}

func (s *Session) runBackoffStart() State {
	// backoff was selected by ReadyToAcquire; start the clock.
	if s.backoff == nil {
		s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
	}
	agreementBackoffsEntered.WithLabelValues(s.Name).Inc()
	s.backoffUntil = s.now().Add(s.backoff.Next())
	return Backoff
}

func (s *Session) runBackoff() State {
	cur, woken := s.ev.Get()
	switch {
	case cur.Has(ReplicateNow):
		s.consume(ReplicateNow)
		s.backoff = nil
		return ReadyToAcquire
	case cur.Has(AgreementChanged):
		s.consume(AgreementChanged)
		s.backoff = nil
		return Start
	case cur.Has(WindowClosed):
		s.consume(WindowClosed)
		s.backoff = nil
		return WaitWindowOpen
	case cur.Has(ChangeAvailable):
		s.consume(ChangeAvailable)
		if s.now().After(s.backoffUntil) {
			return ReadyToAcquire
		}
		return s.state
	case cur.Has(BackoffExpired):
		s.consume(BackoffExpired)
		return ReadyToAcquire
	case cur.Has(WindowOpened):
		log.WithField("agreement", s.Name).Warn("agreement: unexpected WindowOpened in Backoff")
		s.consume(WindowOpened)
		return s.state
	case cur.Has(ProtocolShutdown):
		return s.state
	default:
		remaining := time.Until(s.backoffUntil)
		if remaining <= 0 {
			return ReadyToAcquire
		}
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-woken:
		case <-timer.C:
			s.Notify(BackoffExpired)
		}
		return s.state
	}
}

func (s *Session) runSendingUpdates(ctx context.Context) State {
	started := s.now()
	defer func() {
		agreementSessionDurations.WithLabelValues(s.Name).Observe(s.now().Sub(started).Seconds())
	}()

	if updated, err := s.Dialect.PushSchemaIfNeeded(ctx); err != nil {
		log.WithFields(log.Fields{"agreement": s.Name, "err": err}).Warn("agreement: schema push failed, continuing")
	} else if updated {
		log.WithField("agreement", s.Name).Debug("agreement: pushed schema update")
	}

	outcome, err := s.Dialect.ExamineUpdateVector(ctx, s.peerRUV)
	if err != nil {
		s.lastStatus = "examine_update_vector error: " + err.Error()
		if errors.Is(err, csn.ErrClockSkewExceeded) {
			return StopFatalError
		}
		s.Dialect.ReleaseReplica(ctx)
		s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
		return BackoffStart
	}
	switch outcome {
	case ExaminePristineReplica, ExamineGenerationMismatch, ExamineReplicaTooOld:
		s.lastStatus = "peer requires reinitialization"
		s.Dialect.ReleaseReplica(ctx)
		s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
		return BackoffStart
	}

	it, err := s.Dialect.OpenReplayIterator(ctx, s.peerRUV)
	if err != nil {
		s.lastStatus = "failed to open changelog iterator: " + err.Error()
		s.Dialect.ReleaseReplica(ctx)
		s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
		return BackoffStart
	}
	defer it.Close()

	sendCtx := ctx
	if s.Config.ProtocolTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.Config.ProtocolTimeout)
		defer cancel()
	}

	rr := &ResultReader{
		Dialect:           s.Dialect,
		MaxInFlight:       s.Config.MaxChangesPerSession,
		ConnectionTimeout: s.Config.ProtocolTimeout,
	}

	sent := 0
	var batch []changelog.Operation
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if s.Config.SendBatchSize > 0 {
			batch = msort.UniqueByTarget(batch)
		}
		for _, op := range batch {
			if err := rr.Send(sendCtx, op); err != nil {
				return err
			}
			sent++
		}
		batch = batch[:0]
		return nil
	}
	for {
		op, err := it.Next(sendCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.lastStatus = "changelog read error: " + err.Error()
			s.Dialect.ReleaseReplica(ctx)
			s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
			return BackoffStart
		}
		if op.IsDummy() {
			continue
		}
		batch = append(batch, op)
		if s.Config.SendBatchSize <= 0 || len(batch) >= s.Config.SendBatchSize {
			if err := flush(); err != nil {
				s.lastStatus = "send error: " + err.Error()
				s.Dialect.ReleaseReplica(ctx)
				s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
				return BackoffStart
			}
		}
	}
	if err := flush(); err != nil {
		s.lastStatus = "send error: " + err.Error()
		s.Dialect.ReleaseReplica(ctx)
		s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
		return BackoffStart
	}
	if err := rr.Drain(ctx); err != nil {
		s.lastStatus = "result reader: " + err.Error()
		s.Dialect.ReleaseReplica(ctx)
		s.backoff = NewExponentialBackoff(s.Config.BackoffMin, s.Config.BackoffMax)
		return BackoffStart
	}

	s.numChangesSent = sent
	agreementChangesSent.WithLabelValues(s.Name).Add(float64(sent))
	s.Dialect.ReleaseReplica(ctx)
	s.lastStatus = "no more updates"

	if sent > 0 && s.Config.Pausetime > 0 {
		select {
		case <-time.After(s.Config.Pausetime):
		case <-s.pauseInterrupt():
		}
	}
	return WaitChanges
}

// pauseInterrupt returns a channel that fires if shutdown is
// requested while pausing after NoMoreUpdates, so the pause never
// blocks an orderly exit.
func (s *Session) pauseInterrupt() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		for {
			cur, woken := s.ev.Get()
			if cur.Has(ProtocolShutdown) {
				close(ch)
				return
			}
			<-woken
		}
	}()
	return ch
}

func (s *Session) runStopFatalError(ctx context.Context) State {
	s.Dialect.ReleaseReplica(ctx)
	return StopFatalErrorPart2
}

func (s *Session) runStopFatalErrorPart2() State {
	cur, woken := s.ev.Get()
	switch {
	case cur.Has(AgreementChanged):
		s.consume(AgreementChanged)
		return Start
	case cur.Has(ProtocolShutdown):
		return s.state
	default:
		<-woken
		return s.state
	}
}
