package paymentprovider

// Notes — произвольные поля заказа, которые шлюз возвращает в вебхуке.
type Notes struct {
	UserID string `json:"user_id,omitempty"`
	Plan   string `json:"plan,omitempty"`
}

// CreateOrderRequest — тело запроса на создание заказа. Amount в минимальных
// единицах валюты (пайсы).
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Notes    Notes  `json:"notes"`
}

// Order — заказ, созданный в шлюзе.
type Order struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	Notes     Notes  `json:"notes"`
	CreatedAt int64  `json:"created_at"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// webhookEnvelope повторяет форму вебхука шлюза.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Notes     Notes  `json:"notes"`
	Signature string `json:"signature"`
}
