package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/pkg/errors"
)

var (
	emptyResponseErr = errors.New("Empty response")
)

// New creates new instance of LeaderboardClient
func New(config Config) LeaderboardClient {
	return LeaderboardClient{
		ServerAddress: config.ServerAddress,
		Client:        http.Client{Timeout: time.Duration(config.Timeout) * time.Second},
		Methods: methods{
			HealthCheck: config.ServerAddress + "/",
			Top:         config.ServerAddress + "/top?n=",
			Hash:        config.ServerAddress + "/hash?id=",
		},
	}
}

// MakeRequest performs the http request with specified body
func (client *LeaderboardClient) MakeRequest(ctx context.Context, method, url string, body io.Reader, target interface{}) error {
	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	request.Header.Set("Content-type", "application/json")

	resp, err := client.Client.Do(request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := &cm.ResponseData{}
		json.NewDecoder(resp.Body).Decode(msg)
		return errors.Errorf("Response error: %d %s", resp.StatusCode, msg.Message)
	}

	if target != nil {
		return json.NewDecoder(resp.Body).Decode(target)
	}
	return nil
}

// HealthCheck returns the list of available methods
func (client *LeaderboardClient) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	target := make(map[string]interface{})
	err := client.MakeRequest(ctx, "GET", client.Methods.HealthCheck, nil, &target)
	if err != nil {
		return nil, err
	}
	return target, nil
}

// Top returns up to n best scored hash functions
func (client *LeaderboardClient) Top(ctx context.Context, n int) ([]cm.HashRecord, error) {
	target := &cm.ResponseData{}
	err := client.MakeRequest(ctx, "GET", client.Methods.Top+strconv.Itoa(n), nil, target)
	if err != nil {
		return nil, errors.Wrap(err, "Top")
	}
	return target.Results, nil
}

// Hash returns a single hash function by id
func (client *LeaderboardClient) Hash(ctx context.Context, id uint64) (cm.HashRecord, error) {
	target := &cm.ResponseData{}
	err := client.MakeRequest(ctx, "GET", client.Methods.Hash+strconv.FormatUint(id, 10), nil, target)
	if err != nil {
		return cm.HashRecord{}, errors.Wrap(err, "Hash")
	}
	if len(target.Results) == 0 {
		return cm.HashRecord{}, errors.Wrap(emptyResponseErr, "Hash")
	}
	return target.Results[0], nil
}
