package storage

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"taskflow/config"
	"taskflow/domain"
)

const userPartition = "user"

var retryStatusCodes = []int{408, 429, 500, 502, 503, 504}

// Storage provides access to the document store, the object store and the
// events queue.
type Storage struct {
	usersTable  *aztables.Client
	imagesTable *aztables.Client
	blobs       *azblob.Client
	container   string
	eventQueue  messageQueue
	urlTTL      time.Duration
}

type messageQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// New creates a Storage instance from the given configuration.
func New(cfg config.StorageConfig, urlTTL time.Duration) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(cfg.ConnectionString, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	blobClientOptions := azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 30,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	bc, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, &blobClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(cfg.ConnectionString, cfg.EventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &Storage{
		usersTable:  svc.NewClient(cfg.UsersTable),
		imagesTable: svc.NewClient(cfg.ImagesTable),
		blobs:       bc,
		container:   cfg.ImagesContainer,
		eventQueue:  eq,
		urlTTL:      urlTTL,
	}, nil
}

type userEntity struct {
	aztables.Entity
	Email        string `json:"Email"`
	PasswordHash string `json:"PasswordHash"`
	Provider     string `json:"Provider"`
	CreatedAt    string `json:"CreatedAt"`
}

type captionEntity struct {
	aztables.Entity
	BlobName string `json:"BlobName"`
	Caption  string `json:"Caption"`
}

// GetUser loads the account stored under email.
func (s *Storage) GetUser(ctx context.Context, email string) (domain.User, error) {
	resp, err := s.usersTable.GetEntity(ctx, userPartition, tableKey(email), nil)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return decodeUserEntity(resp.Value)
}

// InsertUser creates a new account. It returns domain.ErrUserExists when the
// email is taken.
func (s *Storage) InsertUser(ctx context.Context, u domain.User) error {
	payload, err := sonic.Marshal(encodeUserEntity(u))
	if err != nil {
		return err
	}
	if _, err := s.usersTable.AddEntity(ctx, payload, nil); err != nil {
		if statusCode(err) == http.StatusConflict {
			return domain.ErrUserExists
		}
		return err
	}
	return nil
}

// UpdatePassword replaces the stored password hash for email.
func (s *Storage) UpdatePassword(ctx context.Context, email, hash string) error {
	payload, err := sonic.Marshal(map[string]any{
		"PartitionKey": userPartition,
		"RowKey":       tableKey(email),
		"PasswordHash": hash,
		"Provider":     domain.ProviderPassword,
	})
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.usersTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if statusCode(err) == http.StatusNotFound {
		return domain.ErrUserNotFound
	}
	return err
}

func encodeUserEntity(u domain.User) userEntity {
	return userEntity{
		Entity:       aztables.Entity{PartitionKey: userPartition, RowKey: tableKey(u.Email)},
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Provider:     u.Provider,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeUserEntity(data []byte) (domain.User, error) {
	var ent userEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	u := domain.User{Email: ent.Email, PasswordHash: ent.PasswordHash, Provider: ent.Provider}
	if ent.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.User{}, err
		}
		u.CreatedAt = created
	}
	return u, nil
}

// FetchCaptions returns the captions stored for userKey keyed by blob name.
func (s *Storage) FetchCaptions(ctx context.Context, userKey string) (map[string]string, error) {
	filter := "PartitionKey eq '" + quoteFilter(tableKey(userKey)) + "'"
	pager := s.imagesTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	captions := map[string]string{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			name, caption, err := decodeCaptionEntity(e)
			if err != nil {
				return nil, err
			}
			captions[name] = caption
		}
	}
	return captions, nil
}

// SaveCaption stores the caption document for ref, replacing any previous one.
func (s *Storage) SaveCaption(ctx context.Context, userKey string, ref domain.BlobRef, caption string) error {
	ent := captionEntity{
		Entity:   aztables.Entity{PartitionKey: tableKey(userKey), RowKey: tableKey(ref.Name)},
		BlobName: ref.Name,
		Caption:  caption,
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.imagesTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func decodeCaptionEntity(data []byte) (string, string, error) {
	var ent captionEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return "", "", err
	}
	name := ent.BlobName
	if name == "" {
		unescaped, err := url.PathUnescape(ent.RowKey)
		if err != nil {
			return "", "", err
		}
		name = unescaped
	}
	return name, ent.Caption, nil
}

// PutBlob uploads data under prefix/name, overwriting an existing blob.
func (s *Storage) PutBlob(ctx context.Context, prefix, name, contentType string, data []byte) (domain.BlobRef, error) {
	ref := domain.BlobRef{Prefix: prefix, Name: name}
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := s.blobs.UploadBuffer(ctx, s.container, ref.Key(), data, opts); err != nil {
		return domain.BlobRef{}, err
	}
	return ref, nil
}

// ListBlobs returns the blobs directly under prefix.
func (s *Storage) ListBlobs(ctx context.Context, prefix string) ([]domain.BlobRef, error) {
	p := prefix + "/"
	pager := s.blobs.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{Prefix: &p})
	refs := []domain.BlobRef{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if resp.Segment == nil {
			continue
		}
		for _, item := range resp.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			name := strings.TrimPrefix(*item.Name, p)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			refs = append(refs, domain.BlobRef{Prefix: prefix, Name: name})
		}
	}
	return refs, nil
}

// ResolveURL returns a time-limited read URL for ref.
func (s *Storage) ResolveURL(ctx context.Context, ref domain.BlobRef) (string, error) {
	bc := s.blobs.ServiceClient().NewContainerClient(s.container).NewBlobClient(ref.Key())
	return bc.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().UTC().Add(s.urlTTL), nil)
}

// EnqueueEvent publishes ev to the events queue.
func (s *Storage) EnqueueEvent(ctx context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// tableKey escapes characters that are not allowed in PartitionKey/RowKey.
func tableKey(s string) string {
	return url.PathEscape(s)
}

func quoteFilter(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
