package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"taskflow/config"
)

// Provision creates the tables, queue and blob container named in cfg.
// Resources that already exist are left untouched.
func Provision(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) error {
	if err := createTables(ctx, cfg.ConnectionString, []string{cfg.UsersTable, cfg.ImagesTable}); err != nil {
		return err
	}
	logger.Infof("tables ready: %s, %s", cfg.UsersTable, cfg.ImagesTable)

	if err := createQueues(ctx, cfg.ConnectionString, []string{cfg.EventsQueue}); err != nil {
		return err
	}
	logger.Infof("queue ready: %s", cfg.EventsQueue)

	if err := createContainer(ctx, cfg.ConnectionString, cfg.ImagesContainer); err != nil {
		return err
	}
	logger.Infof("container ready: %s", cfg.ImagesContainer)
	return nil
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		c := svc.NewClient(name)
		_, err := c.CreateTable(ctx, nil)
		if err != nil && !hasErrorCode(err, string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		_, err = q.Create(ctx, nil)
		if err != nil && !hasErrorCode(err, "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}

func createContainer(ctx context.Context, connStr, name string) error {
	if name == "" {
		return nil
	}
	c, err := azblob.NewClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	_, err = c.CreateContainer(ctx, name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return err
	}
	return nil
}

func hasErrorCode(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
