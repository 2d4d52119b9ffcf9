package beneficiary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/ssbcStaker/meta"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPClient 调用远程部署的受益合约服务
type HTTPClient struct {
	url string
	hc  *http.Client
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url: strings.TrimRight(url, "/"),
		hc:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Receive(ctx context.Context, from string, amount *big.Int) error {
	body, err := json.Marshal(meta.ContractRequest{
		Method: CompleteMethod,
		Args:   map[string]string{"from": from, "value": amount.String()},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *HTTPClient) Status(ctx context.Context) (meta.BeneficiaryStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/completed", nil)
	if err != nil {
		return meta.BeneficiaryStatus{}, err
	}
	res, err := c.do(req)
	if err != nil {
		return meta.BeneficiaryStatus{}, err
	}
	completed, _ := strconv.ParseBool(res.Read["completed"])
	return meta.BeneficiaryStatus{
		Address:   res.Read["address"],
		Completed: completed,
		Balance:   res.Read["balance"],
		Funder:    res.Read["funder"],
	}, nil
}

func (c *HTTPClient) do(req *http.Request) (meta.ContractResponse, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return meta.ContractResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return meta.ContractResponse{}, fmt.Errorf("beneficiary %s: %s: %s", req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	var res meta.ContractResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return meta.ContractResponse{}, err
	}
	return res, nil
}
