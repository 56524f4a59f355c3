// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package jobs resolves the transaction id a conversion job runs under.
//
// Each schema keeps one transaction id until it is explicitly reset, so
// repeating a conversion appends to the same status record on the backend.
package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/conversion"
	"convtrack/cli/internal/errors"
	"convtrack/cli/internal/txstore"
)

// Starter asks the backend to start a job. It may be nil when the backend
// starts jobs from the progress stream.
type Starter interface {
	StartJob(ctx context.Context, spec conversion.JobSpec, txID string) error
}

// Initiator assigns transaction ids and starts jobs.
type Initiator struct {
	store   txstore.Store
	starter Starter
	newID   func() string
	log     logrus.FieldLogger
}

// Option configures an Initiator.
type Option func(*Initiator)

// WithStarter posts every started job through s.
func WithStarter(s Starter) Option {
	return func(i *Initiator) { i.starter = s }
}

// WithLogger replaces the standard logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(i *Initiator) { i.log = l }
}

// NewInitiator creates an Initiator persisting ids in store.
func NewInitiator(store txstore.Store, opts ...Option) *Initiator {
	i := &Initiator{
		store: store,
		newID: uuid.NewString,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// StartJob returns the transaction id for spec, minting and persisting a new
// one when the schema has none yet. On error no id is returned and the caller
// must not open a stream.
func (i *Initiator) StartJob(ctx context.Context, spec conversion.JobSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	id, found, err := i.store.Lookup(ctx, spec.Schema)
	if err != nil {
		return "", errors.Wrap(errors.PersistenceFailed, "look up transaction id of "+spec.Schema, err)
	}
	if found {
		i.log.WithFields(logrus.Fields{"schema": spec.Schema, "tx": id}).Debug("reusing transaction id")
	} else {
		id, err = i.mint(ctx, spec.Schema)
		if err != nil {
			return "", err
		}
	}

	if i.starter != nil {
		if err := i.starter.StartJob(ctx, spec, id); err != nil {
			return "", errors.Wrap(errors.SetupFailed, "start conversion job", err)
		}
	}
	return id, nil
}

// Reset assigns a fresh transaction id to schema.
func (i *Initiator) Reset(ctx context.Context, schema string) (string, error) {
	if schema == "" {
		return "", errors.New(errors.SetupFailed, "schema is required")
	}
	return i.mint(ctx, schema)
}

// Current returns the stored id of schema without minting one.
func (i *Initiator) Current(ctx context.Context, schema string) (string, bool, error) {
	id, found, err := i.store.Lookup(ctx, schema)
	if err != nil {
		return "", false, errors.Wrap(errors.PersistenceFailed, "look up transaction id of "+schema, err)
	}
	return id, found, nil
}

func (i *Initiator) mint(ctx context.Context, schema string) (string, error) {
	id := i.newID()
	if err := i.store.Save(ctx, schema, id); err != nil {
		return "", errors.Wrap(errors.PersistenceFailed, "save transaction id of "+schema, err)
	}
	i.log.WithFields(logrus.Fields{"schema": schema, "tx": id}).Info("assigned new transaction id")
	return id, nil
}
