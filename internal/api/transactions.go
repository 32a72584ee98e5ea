package api

import (
	"net/http"

	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
)

// transactionPatch holds the fields a PUT may change. Absent fields keep
// their value; present lists replace the stored ones.
type transactionPatch struct {
	SplitID         *int64                   `json:"splitId"`
	Title           *string                  `json:"title"`
	TransactionType *model.TransactionType   `json:"transactionType"`
	BillAmount      *float64                 `json:"billAmount"`
	Date            *string                  `json:"date"`
	BillLink        *string                  `json:"billLink"`
	Items           *[]model.TransactionItem `json:"items"`
	Splits          *[]model.Share           `json:"splits"`
	PaidBy          *[]model.Share           `json:"paidBy"`
}

func (p transactionPatch) apply(txn *model.Transaction) {
	if p.SplitID != nil {
		txn.SplitID = *p.SplitID
	}
	if p.Title != nil {
		txn.Title = *p.Title
	}
	if p.TransactionType != nil {
		txn.TransactionType = *p.TransactionType
	}
	if p.BillAmount != nil {
		txn.BillAmount = *p.BillAmount
	}
	if p.Date != nil {
		txn.Date = *p.Date
	}
	if p.BillLink != nil {
		txn.BillLink = p.BillLink
	}
	if p.Items != nil {
		txn.Items = *p.Items
	}
	if p.Splits != nil {
		txn.Splits = *p.Splits
	}
	if p.PaidBy != nil {
		txn.PaidBy = *p.PaidBy
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	var filter service.TransactionFilter
	var err error
	if filter.SplitID, err = queryInt(r, "splitId"); err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter.Limit, filter.Offset = int(limit), int(offset)

	txns, err := s.store.GetTransactions(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var txn model.Transaction
	if err := decodeBody(r, &txn); err != nil {
		s.fail(w, r, err)
		return
	}
	txn.ID = 0
	if txn.TransactionType == "" {
		txn.TransactionType = model.TypeOther
	}
	if txn.Date == "" {
		txn.Date = s.now().Format(model.DateLayout)
	}

	if err := s.store.CreateTransaction(r.Context(), &txn); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.GetTransaction(r.Context(), txn.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txn, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txn, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var patch transactionPatch
	if err := decodeBody(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	patch.apply(txn)

	if err := s.store.UpdateTransaction(r.Context(), txn); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Transaction deleted")
}
