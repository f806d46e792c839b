package newsletter

// WithTxBeginner returns a copy of p that opens its transactions through db.
func (p *Publisher) WithTxBeginner(db TxBeginner) *Publisher {
	c := *p
	c.db = db
	return &c
}
