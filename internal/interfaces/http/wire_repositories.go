package http

import (
	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/infrastructure/repository"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type repositories struct {
	txMgr         *db.TransactionManager
	ledger        *repository.ProcessedEventRepositoryImpl
	subscriptions *repository.SubscriptionRepositoryImpl
	payments      *repository.PaymentRepositoryImpl
	notifications *repository.NotificationRepositoryImpl
	plans         *repository.PlanRepositoryImpl
	users         *repository.UserRepositoryImpl
	jobs          *repository.JobRepositoryImpl
}

func newRepositories(gdb *gorm.DB, log logger.Interface) *repositories {
	return &repositories{
		txMgr:         db.NewTransactionManager(gdb),
		ledger:        repository.NewProcessedEventRepository(gdb, log),
		subscriptions: repository.NewSubscriptionRepository(gdb, log),
		payments:      repository.NewPaymentRepository(gdb, log),
		notifications: repository.NewNotificationRepository(gdb, log),
		plans:         repository.NewPlanRepository(gdb, log),
		users:         repository.NewUserRepository(gdb, log),
		jobs:          repository.NewJobRepository(gdb, log),
	}
}
