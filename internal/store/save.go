package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/resilience"
)

// Contact kinds stored in dados_contato.tipo.
const (
	ContactPhone = "telefone"
	ContactEmail = "email"
)

// SaveConsulta writes the audit rows, upserts the company by CNPJ, replaces
// its dependent collections and appends the report sections, all in one
// transaction. Any failing step rolls the whole run back and returns a
// persistence error.
func (s *SQLStore) SaveConsulta(ctx context.Context, in SaveInput) (res *SaveResult, err error) {
	rec := in.Record
	cnpj := model.NormalizeCNPJ(rec.CNPJ)
	if cnpj == "" {
		return nil, resilience.NewPersistenceError(eris.New("store: record has no cnpj"))
	}
	now := in.ConsultedAt.UTC()
	if in.ConsultedAt.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.stepErr("begin", cnpj, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Error("store: rollback failed", zap.String("cnpj", cnpj), zap.Error(rbErr))
			}
		}
	}()

	res = &SaveResult{Protocol: uuid.New().String()}

	res.ConsultaID, err = s.insertID(ctx, tx, "consulta",
		[]string{"protocolo", "operador", "produto", "data_consulta"},
		res.Protocol, nullString(in.Operator), nullString(in.Product), now)
	if err != nil {
		return nil, s.stepErr("consulta", cnpj, err)
	}

	res.EmpresaID, res.EmpresaCreated, err = s.upsertEmpresa(ctx, tx, cnpj, &rec, now)
	if err != nil {
		return nil, s.stepErr("empresa", cnpj, err)
	}

	res.ConsultaEmpresaID, err = s.insertID(ctx, tx, "consulta_empresa",
		[]string{"consulta_id", "empresa_id", "texto_tess", "resposta_cnpja", "creditos", "created_at"},
		res.ConsultaID, res.EmpresaID, nullString(in.TessText), nullString(in.CNPJAJSON), in.Credits, now)
	if err != nil {
		return nil, s.stepErr("consulta_empresa", cnpj, err)
	}

	for _, step := range []struct {
		table string
		fn    func(context.Context, *sql.Tx, int64, *model.ConsolidatedRecord) error
	}{
		{"endereco", s.replaceAddress},
		{"dados_contato", s.replaceContacts},
		{"socios", s.replaceOwners},
		{"quadro_administrativo", s.replaceBoard},
		{"tipos_garantias", s.replaceGuarantees},
	} {
		if err = step.fn(ctx, tx, res.EmpresaID, &rec); err != nil {
			return nil, s.stepErr(step.table, cnpj, err)
		}
	}

	if err = s.insertReport(ctx, tx, res.ConsultaEmpresaID, rec.Report); err != nil {
		return nil, s.stepErr("report", cnpj, err)
	}

	if err = s.upsertRegistration(ctx, tx, res.EmpresaID, cnpj, now); err != nil {
		return nil, s.stepErr("client_registrations", cnpj, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, s.stepErr("commit", cnpj, err)
	}

	s.log.Info("store: consulta saved",
		zap.String("cnpj", cnpj),
		zap.String("protocol", res.Protocol),
		zap.Int64("empresa_id", res.EmpresaID),
		zap.Bool("empresa_created", res.EmpresaCreated),
	)
	return res, nil
}

func (s *SQLStore) stepErr(table, cnpj string, err error) error {
	s.log.Error("store: step failed", zap.String("table", table), zap.String("cnpj", cnpj), zap.Error(err))
	return resilience.NewPersistenceError(eris.Wrapf(err, "store: %s", table))
}

func (s *SQLStore) insertID(ctx context.Context, tx *sql.Tx, table string, cols []string, args ...any) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.q(s.dialect.InsertReturningID(table, cols)), args...).Scan(&id)
	return id, err
}

func (s *SQLStore) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	_, err := tx.ExecContext(ctx, s.q(query), args...)
	return err
}

func (s *SQLStore) upsertEmpresa(ctx context.Context, tx *sql.Tx, cnpj string, rec *model.ConsolidatedRecord, now time.Time) (int64, bool, error) {
	fields := []any{
		nullString(rec.LegalName),
		nullString(rec.TradeName),
		nullString(rec.Status),
		nullString(rec.Size),
		nullString(rec.LegalNature),
		nullString(rec.FoundedAt),
		nullDecimal(rec.ShareCapital),
		nullString(rec.MainActivity),
		nullString(rec.StateRegistration),
		nullString(rec.Suframa),
		nullString(rec.PrimaryPhone()),
		nullString(rec.PrimaryEmail()),
	}

	var id int64
	err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM empresa WHERE cnpj = ?`), cnpj).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		cols := []string{
			"cnpj", "razao_social", "nome_fantasia", "situacao", "porte", "natureza_juridica",
			"data_fundacao", "capital_social", "atividade_principal", "inscricao_estadual",
			"suframa", "telefone", "email", "created_at", "updated_at",
		}
		args := append([]any{cnpj}, fields...)
		args = append(args, now, now)
		id, err = s.insertID(ctx, tx, "empresa", cols, args...)
		if err != nil {
			return 0, false, eris.Wrap(err, "insert")
		}
		return id, true, nil
	case err != nil:
		return 0, false, eris.Wrap(err, "select by cnpj")
	}

	// Partial runs keep previously known values.
	args := append(fields, now, id)
	err = s.exec(ctx, tx, `UPDATE empresa SET
		razao_social = COALESCE(?, razao_social),
		nome_fantasia = COALESCE(?, nome_fantasia),
		situacao = COALESCE(?, situacao),
		porte = COALESCE(?, porte),
		natureza_juridica = COALESCE(?, natureza_juridica),
		data_fundacao = COALESCE(?, data_fundacao),
		capital_social = COALESCE(?, capital_social),
		atividade_principal = COALESCE(?, atividade_principal),
		inscricao_estadual = COALESCE(?, inscricao_estadual),
		suframa = COALESCE(?, suframa),
		telefone = COALESCE(?, telefone),
		email = COALESCE(?, email),
		updated_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return 0, false, eris.Wrap(err, "update")
	}
	return id, false, nil
}

func (s *SQLStore) replaceAddress(ctx context.Context, tx *sql.Tx, empresaID int64, rec *model.ConsolidatedRecord) error {
	if err := s.exec(ctx, tx, `DELETE FROM endereco WHERE empresa_id = ?`, empresaID); err != nil {
		return eris.Wrap(err, "delete")
	}
	a := rec.Address
	if a.IsEmpty() {
		return nil
	}
	full := a.Full
	if full == "" {
		full = a.ComposeFull()
	}
	err := s.exec(ctx, tx, Insert("endereco", []string{
		"empresa_id", "logradouro", "numero", "complemento", "bairro", "cidade", "uf", "cep",
		"latitude", "longitude", "endereco_completo",
	}), empresaID, nullString(a.Street), nullString(a.Number), nullString(a.Complement),
		nullString(a.District), nullString(a.City), nullUF(a.State), nullString(a.PostalCode),
		a.Latitude, a.Longitude, nullString(full))
	return eris.Wrap(err, "insert")
}

func (s *SQLStore) replaceContacts(ctx context.Context, tx *sql.Tx, empresaID int64, rec *model.ConsolidatedRecord) error {
	if err := s.exec(ctx, tx, `DELETE FROM dados_contato WHERE empresa_id = ?`, empresaID); err != nil {
		return eris.Wrap(err, "delete")
	}
	query := Insert("dados_contato", []string{"empresa_id", "tipo", "valor", "principal"})
	for _, group := range []struct {
		kind   string
		values []string
	}{
		{ContactPhone, rec.Phones},
		{ContactEmail, rec.Emails},
	} {
		for i, v := range group.values {
			if err := s.exec(ctx, tx, query, empresaID, group.kind, v, i == 0); err != nil {
				return eris.Wrapf(err, "insert %s", group.kind)
			}
		}
	}
	return nil
}

func (s *SQLStore) replaceOwners(ctx context.Context, tx *sql.Tx, empresaID int64, rec *model.ConsolidatedRecord) error {
	if err := s.exec(ctx, tx, `DELETE FROM socios WHERE empresa_id = ?`, empresaID); err != nil {
		return eris.Wrap(err, "delete")
	}
	query := Insert("socios", []string{"empresa_id", "documento", "nome", "tipo_pessoa", "data_entrada", "percentual", "cargo"})
	for _, o := range rec.Owners {
		if err := s.exec(ctx, tx, query, empresaID, nullString(o.TaxID), o.Name, nullString(o.PersonType),
			nullString(o.EntryDate), nullDecimal(o.Percentage), nullString(o.Role)); err != nil {
			return eris.Wrap(err, "insert")
		}
	}
	return nil
}

func (s *SQLStore) replaceBoard(ctx context.Context, tx *sql.Tx, empresaID int64, rec *model.ConsolidatedRecord) error {
	if err := s.exec(ctx, tx, `DELETE FROM quadro_administrativo WHERE empresa_id = ?`, empresaID); err != nil {
		return eris.Wrap(err, "delete")
	}
	query := Insert("quadro_administrativo", []string{"empresa_id", "documento", "nome", "cargo", "data_eleicao"})
	for _, b := range rec.Board {
		if err := s.exec(ctx, tx, query, empresaID, nullString(b.TaxID), b.Name, nullString(b.Role),
			nullString(b.ElectionDate)); err != nil {
			return eris.Wrap(err, "insert")
		}
	}
	return nil
}

func (s *SQLStore) replaceGuarantees(ctx context.Context, tx *sql.Tx, empresaID int64, rec *model.ConsolidatedRecord) error {
	if err := s.exec(ctx, tx, `DELETE FROM tipos_garantias WHERE empresa_id = ?`, empresaID); err != nil {
		return eris.Wrap(err, "delete")
	}
	if rec.Report.SCR == nil {
		return nil
	}
	query := Insert("tipos_garantias", []string{"empresa_id", "tipo", "valor"})
	for _, g := range rec.Report.SCR.Garantias {
		if g.Tipo.String() == "" {
			continue
		}
		if err := s.exec(ctx, tx, query, empresaID, g.Tipo.String(), nullDecimal(g.Valor.String())); err != nil {
			return eris.Wrap(err, "insert")
		}
	}
	return nil
}

// insertReport appends the optional sections; missing ones are skipped.
func (s *SQLStore) insertReport(ctx context.Context, tx *sql.Tx, ceID int64, r model.CreditReport) error {
	for _, o := range r.Occurrences {
		err := s.exec(ctx, tx, Insert("ocorrencias", []string{"consulta_empresa_id", "tipo", "descricao", "data", "valor", "origem"}),
			ceID, nullString(o.Tipo.String()), nullString(o.Descricao.String()), nullString(o.Data.String()),
			nullDecimal(o.Valor.String()), nullString(o.Origem.String()))
		if err != nil {
			return eris.Wrap(err, "insert ocorrencias")
		}
	}

	if !r.Score.IsEmpty() {
		err := s.exec(ctx, tx, Insert("score_credito", []string{"consulta_empresa_id", "score", "faixa", "probabilidade_inadimplencia", "data_calculo"}),
			ceID, nullInt(r.Score.Score.String()), nullString(r.Score.Faixa.String()),
			nullString(r.Score.ProbabilidadeInadimplencia.String()), nullString(r.Score.DataCalculo.String()))
		if err != nil {
			return eris.Wrap(err, "insert score_credito")
		}
	}

	for _, h := range r.PaymentHistory {
		err := s.exec(ctx, tx, Insert("historico_pagamento_positivo", []string{"consulta_empresa_id", "referencia", "quantidade_pagamentos", "valor_total", "percentual_pontual"}),
			ceID, nullString(h.Referencia.String()), nullInt(h.QtdPagamentos.String()),
			nullDecimal(h.ValorTotal.String()), nullString(h.PercentualPontual.String()))
		if err != nil {
			return eris.Wrap(err, "insert historico_pagamento_positivo")
		}
	}

	if !r.SCR.IsEmpty() {
		err := s.exec(ctx, tx, Insert("scr", []string{
			"consulta_empresa_id", "data_base", "carteira_ativa", "vencido", "prejuizo", "limite_credito",
			"quantidade_instituicoes", "quantidade_operacoes",
		}), ceID, nullString(r.SCR.DataBase.String()), nullDecimal(r.SCR.CarteiraAtiva.String()),
			nullDecimal(r.SCR.Vencido.String()), nullDecimal(r.SCR.Prejuizo.String()),
			nullDecimal(r.SCR.LimiteCredito.String()), nullInt(r.SCR.QtdInstituicoes.String()),
			nullInt(r.SCR.QtdOperacoes.String()))
		if err != nil {
			return eris.Wrap(err, "insert scr")
		}
	}

	for _, c := range r.Inquiries {
		err := s.exec(ctx, tx, Insert("consultas_realizadas", []string{"consulta_empresa_id", "data", "consultante", "quantidade"}),
			ceID, nullString(c.Data.String()), nullString(c.Consultante.String()), nullInt(c.Quantidade.String()))
		if err != nil {
			return eris.Wrap(err, "insert consultas_realizadas")
		}
	}
	return nil
}

func (s *SQLStore) upsertRegistration(ctx context.Context, tx *sql.Tx, empresaID int64, cnpj string, now time.Time) error {
	var id int64
	err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM client_registrations WHERE empresa_id = ?`), empresaID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.exec(ctx, tx, Insert("client_registrations", []string{"empresa_id", "cnpj", "status", "attempts", "created_at", "updated_at"}),
			empresaID, cnpj, string(model.RegistrationPending), 0, now, now)
	case err != nil:
		return eris.Wrap(err, "select")
	}
	return s.exec(ctx, tx, `UPDATE client_registrations SET status = ?, error = NULL, updated_at = ? WHERE id = ?`,
		string(model.RegistrationPending), now, id)
}

// UpdateRegistration records the ERP outcome on the company's registration row.
func (s *SQLStore) UpdateRegistration(ctx context.Context, cnpj string, reg model.ERPRegistration) error {
	cnpj = model.NormalizeCNPJ(cnpj)
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE client_registrations SET
		status = ?, customer_id = ?, kind = ?, note = ?, error = ?, attempts = attempts + 1, updated_at = ?
		WHERE cnpj = ?`),
		string(reg.Status), nullString(reg.CustomerID), nullString(reg.Kind), nullString(reg.Note),
		nullString(reg.Error), time.Now().UTC(), cnpj)
	if err != nil {
		return resilience.NewPersistenceError(eris.Wrapf(err, "store: update registration %s", cnpj))
	}
	if err := checkRowsAffected(res, "registration", cnpj); err != nil {
		return resilience.NewPersistenceError(err)
	}
	return nil
}

// GetRegistration returns the registration row for cnpj, or nil when absent.
func (s *SQLStore) GetRegistration(ctx context.Context, cnpj string) (*Registration, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT empresa_id, cnpj, status, customer_id, kind, note, error, attempts, updated_at
		FROM client_registrations WHERE cnpj = ?`), model.NormalizeCNPJ(cnpj))
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get registration %s", cnpj)
	}
	return reg, nil
}

func scanRegistration(row scannable) (*Registration, error) {
	var (
		r                               Registration
		status                          string
		customerID, kind, note, errText sql.NullString
	)
	if err := row.Scan(&r.EmpresaID, &r.CNPJ, &status, &customerID, &kind, &note, &errText, &r.Attempts, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RegistrationStatus(status)
	r.CustomerID = customerID.String
	r.Kind = kind.String
	r.Note = note.String
	r.Error = errText.String
	return &r, nil
}
