package beneficiary

import (
	"encoding/json"
	"github.com/cloudflare/cfssl/log"
	"github.com/gorilla/mux"
	"github.com/ssbcStaker/meta"
	"math/big"
	"net/http"
	"strconv"
)

const CompleteMethod = "complete"

// NewRouter 将 Contract 暴露为合约服务：
// POST / 接收 ContractRequest，GET /completed 查询是否已完成
func NewRouter(c *Contract) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", handler(c)).Methods(http.MethodPost)
	r.HandleFunc("/completed", completedHandler(c)).Methods(http.MethodGet)
	return r
}

func handler(c *Contract) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cr := meta.ContractRequest{}
		if err := json.NewDecoder(r.Body).Decode(&cr); err != nil {
			log.Errorf("[Beneficiary] decode request: %s", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		switch cr.Method {
		case CompleteMethod:
			handleComplete(c, cr.Args, w, r)
		default:
			http.Error(w, "unknown method "+cr.Method, http.StatusNotFound)
		}
	}
}

// args: {"from": 质押池地址, "value": 转入金额（wei）}
func handleComplete(c *Contract, args map[string]string, w http.ResponseWriter, r *http.Request) {
	value, ok := new(big.Int).SetString(args["value"], 10)
	if !ok || value.Sign() < 0 {
		http.Error(w, "invalid value", http.StatusBadRequest)
		return
	}
	if err := c.Receive(r.Context(), args["from"], value); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// 写集需要更新到链上
	writeResponse(w, meta.ContractResponse{
		Set: map[string]string{
			"completed": "true",
			"balance":   c.Balance().String(),
		},
	})
}

func completedHandler(c *Contract) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := c.Status(r.Context())
		writeResponse(w, meta.ContractResponse{
			Read: map[string]string{
				"address":   st.Address,
				"completed": strconv.FormatBool(st.Completed),
				"balance":   st.Balance,
				"funder":    st.Funder,
			},
		})
	}
}

func writeResponse(w http.ResponseWriter, res meta.ContractResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Errorf("[Beneficiary] write response: %s", err)
	}
}
