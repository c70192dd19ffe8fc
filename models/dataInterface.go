package models

type Identifier interface {
	GetId() int
}

func (w Warehouse) GetId() int {
	return w.ID
}

func (w Warehouse) GetBusinessId() string {
	return w.BusinessId
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetBusinessId() string {
	return p.BusinessId
}

func (p ProductVariant) GetId() int {
	return p.ID
}

func (p ProductVariant) GetBusinessId() string {
	return p.BusinessId
}

func (s StockRecord) GetId() int {
	return s.ID
}

func (s StockRecord) GetBusinessId() string {
	return s.BusinessId
}

func (t Transfer) GetId() int {
	return t.ID
}

func (t Transfer) GetBusinessId() string {
	return t.BusinessId
}

// cursor for transfer pagination, paired with id in the composite cursor
func (t Transfer) GetCursor() string {
	return t.CreatedAt.Format("2006-01-02 15:04:05.000000")
}

func (t TransferTransition) GetId() int {
	return t.ID
}

func (u User) GetId() int {
	return u.ID
}

func (u User) GetBusinessId() string {
	return u.BusinessId
}
