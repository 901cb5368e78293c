package infrastructure

import (
	"settlement/application"
	"settlement/database"
	"settlement/domain/events"
	"settlement/domain/interfaces"
	"settlement/repository"
)

// localHandlerRegistrar is implemented by the bus publishers
type localHandlerRegistrar interface {
	RegisterLocalHandler(eventType events.EventType, handler LocalEventHandler)
}

// UnitOfWorkFactory implements the application.UnitOfWorkFactory interface.
// It creates units that pair guild-scoped repositories with event publishing.
type UnitOfWorkFactory struct {
	repoFactory interface {
		CreateForGuild(guildID int64) application.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory
func NewUnitOfWorkFactory(db *database.DB, eventPublisher interfaces.EventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repository.NewUnitOfWorkFactory(db),
		eventPublisher: eventPublisher,
	}
}

// RegisterLocalHandler registers a handler invoked in-process for published events
func (f *UnitOfWorkFactory) RegisterLocalHandler(eventType events.EventType, handler LocalEventHandler) {
	if registrar, ok := f.eventPublisher.(localHandlerRegistrar); ok {
		registrar.RegisterLocalHandler(eventType, handler)
	}
}

// CreateForGuild creates a new UnitOfWork with its own transactional publisher
func (f *UnitOfWorkFactory) CreateForGuild(guildID int64) application.UnitOfWork {
	return &unitOfWork{
		inner:                  f.repoFactory.CreateForGuild(guildID),
		transactionalPublisher: NewTransactionalPublisher(f.eventPublisher),
	}
}
