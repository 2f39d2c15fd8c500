package repository

import (
	"github.com/flexprice/parkingpermits/internal/domain/extension"
	"github.com/flexprice/parkingpermits/internal/domain/order"
	"github.com/flexprice/parkingpermits/internal/domain/permit"
	"github.com/flexprice/parkingpermits/internal/domain/product"
	"github.com/flexprice/parkingpermits/internal/domain/refund"
	"github.com/flexprice/parkingpermits/internal/logger"
	"github.com/flexprice/parkingpermits/internal/postgres"
	postgresRepo "github.com/flexprice/parkingpermits/internal/repository/postgres"
)

func NewProductRepository(db *postgres.DB, logger *logger.Logger) product.Repository {
	return postgresRepo.NewProductRepository(db, logger)
}

func NewPermitRepository(db *postgres.DB, logger *logger.Logger) permit.Repository {
	return postgresRepo.NewPermitRepository(db, logger)
}

func NewTemporaryVehicleRepository(db *postgres.DB, logger *logger.Logger) permit.TemporaryVehicleRepository {
	return postgresRepo.NewTemporaryVehicleRepository(db, logger)
}

func NewOrderRepository(db *postgres.DB, logger *logger.Logger) order.Repository {
	return postgresRepo.NewOrderRepository(db, logger)
}

func NewRefundRepository(db *postgres.DB, logger *logger.Logger) refund.Repository {
	return postgresRepo.NewRefundRepository(db, logger)
}

func NewExtensionRequestRepository(db *postgres.DB, logger *logger.Logger) extension.Repository {
	return postgresRepo.NewExtensionRequestRepository(db, logger)
}
