package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/ruteri/be-registry/api"
	"github.com/ruteri/be-registry/interfaces"
)

var _ interfaces.EntityRegistry = (*RegistryClient)(nil)

// RegistryClient implements interfaces.EntityRegistry against a remote
// registry server.
type RegistryClient struct {
	// ServerAddr is the base URL of the registry server
	ServerAddr string

	HTTPClient *http.Client
}

// NewRegistryClient creates a client for the registry at serverAddr.
func NewRegistryClient(serverAddr string) *RegistryClient {
	return &RegistryClient{
		ServerAddr: strings.TrimRight(serverAddr, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RegistryClient) RegisterBE(ctx context.Context, caller common.Address, data interfaces.BusinessEntity) (common.Address, error) {
	var resp api.RegisterResponse
	if err := c.do(ctx, http.MethodPost, api.EntitiesPath, &caller, data, &resp); err != nil {
		return common.Address{}, err
	}
	return resp.Address, nil
}

func (c *RegistryClient) GetAllBEs(ctx context.Context, caller common.Address) ([]interfaces.BusinessEntity, error) {
	var resp []interfaces.BusinessEntity
	if err := c.do(ctx, http.MethodGet, api.EntitiesPath, &caller, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *RegistryClient) GetBE(ctx context.Context, caller common.Address, address common.Address) (interfaces.BusinessEntity, error) {
	var resp interfaces.BusinessEntity
	err := c.do(ctx, http.MethodGet, entityPath(address), &caller, nil, &resp)
	return resp, err
}

func (c *RegistryClient) GetBEsByUser(ctx context.Context, caller common.Address, user common.Address) (interfaces.UserEntities, error) {
	var resp interfaces.UserEntities
	err := c.do(ctx, http.MethodGet, fmt.Sprintf(api.UserEntitiesPath, user.Hex()), &caller, nil, &resp)
	return resp, err
}

func (c *RegistryClient) UpdateBE(ctx context.Context, caller common.Address, address common.Address, data interfaces.BusinessEntity) error {
	return c.do(ctx, http.MethodPut, entityPath(address), &caller, data, nil)
}

func (c *RegistryClient) ChangeBEStatus(ctx context.Context, caller common.Address, address common.Address, status interfaces.Status) error {
	body := api.ChangeStatusRequest{Status: status}
	return c.do(ctx, http.MethodPost, entityPath(address)+"/status", &caller, body, nil)
}

func (c *RegistryClient) DeleteBE(ctx context.Context, caller common.Address, address common.Address) error {
	return c.do(ctx, http.MethodDelete, entityPath(address), &caller, nil, nil)
}

func (c *RegistryClient) LogicInfo(ctx context.Context) (interfaces.LogicInfo, error) {
	var resp interfaces.LogicInfo
	err := c.do(ctx, http.MethodGet, api.LogicPath, nil, nil, &resp)
	return resp, err
}

func entityPath(address common.Address) string {
	return api.EntitiesPath + "/" + address.Hex()
}

func (c *RegistryClient) do(ctx context.Context, method, path string, caller *common.Address, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(api.RequestIDHeader, uuid.NewString())
	if caller != nil {
		req.Header.Set(api.CallerHeader, caller.Hex())
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

// responseError maps a failed response back onto the registry sentinels.
func responseError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("registry returned non-2xx response: %d", resp.StatusCode)
	}

	message := strings.TrimSpace(string(bodyBytes))
	var parsed api.ErrorResponse
	if json.Unmarshal(bodyBytes, &parsed) == nil && parsed.Error != "" {
		message = parsed.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = interfaces.ErrNotFound
	case http.StatusBadRequest:
		sentinel = interfaces.ErrInvalidInput
	case http.StatusForbidden:
		sentinel = interfaces.ErrForbidden
	case http.StatusConflict:
		sentinel = interfaces.ErrInvalidTransition
	default:
		return fmt.Errorf("registry returned error %d: %s", resp.StatusCode, message)
	}

	if message == "" {
		return sentinel
	}
	return &RemoteError{StatusCode: resp.StatusCode, Message: message, sentinel: sentinel}
}

// RemoteError is a registry failure reported by the server. It matches the
// corresponding interfaces sentinel with errors.Is.
type RemoteError struct {
	StatusCode int
	Message    string
	sentinel   error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Is(target error) bool {
	return errors.Is(e.sentinel, target)
}
