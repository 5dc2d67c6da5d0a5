package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matsen/metakg/internal/model"
)

const selectKineticFields = `id, enzyme_id, reaction_id, substrate_id,
	km, kcat, vmax, ki, hill_coefficient, delta_g_prime, equilibrium_constant,
	ph, temperature_celsius, ionic_strength,
	source_database, literature_reference, organism, tissue,
	confidence_score, measurement_error`

const selectRegulatoryFields = `id, enzyme_id, compound_id, interaction_type,
	ki_allosteric, hill_coefficient, site, source_database, literature_reference`

// UpsertKineticParams stores kinetic parameter rows in one transaction. Rows
// without an id get their content-derived id. Existing ids are skipped unless
// force is set, in which case they are overwritten. Returns rows written.
func (d *DB) UpsertKineticParams(ctx context.Context, params []model.KineticParam, force bool) (int, error) {
	verb := "INSERT OR IGNORE"
	if force {
		verb = "INSERT OR REPLACE"
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning kinetics write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, verb+` INTO kinetic_parameters (`+selectKineticFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing kinetics insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, p := range params {
		p.AssignID()
		res, err := stmt.ExecContext(ctx,
			p.ID, nullableStringValue(p.EnzymeID), nullableStringValue(p.ReactionID), nullableStringValue(p.SubstrateID),
			nullableFloat(p.Km), nullableFloat(p.Kcat), nullableFloat(p.Vmax), nullableFloat(p.Ki),
			nullableFloat(p.HillCoefficient), nullableFloat(p.DeltaGPrime), nullableFloat(p.EquilibriumConstant),
			nullableFloat(p.PH), nullableFloat(p.TemperatureCelsius), nullableFloat(p.IonicStrength),
			nullableStringValue(p.SourceDatabase), nullableStringValue(p.LiteratureReference),
			nullableStringValue(p.Organism), nullableStringValue(p.Tissue),
			nullableFloat(p.ConfidenceScore), nullableFloat(p.MeasurementError),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting kinetic parameter %s: %w", p.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing kinetics write: %w", err)
	}
	return written, nil
}

// UpsertRegulatoryInteractions stores regulatory rows with the same skip/force
// semantics as UpsertKineticParams.
func (d *DB) UpsertRegulatoryInteractions(ctx context.Context, ris []model.RegulatoryInteraction, force bool) (int, error) {
	verb := "INSERT OR IGNORE"
	if force {
		verb = "INSERT OR REPLACE"
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning regulatory write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, verb+` INTO regulatory_interactions (`+selectRegulatoryFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing regulatory insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, r := range ris {
		r.AssignID()
		res, err := stmt.ExecContext(ctx,
			r.ID, r.EnzymeID, r.CompoundID, r.InteractionType,
			nullableFloat(r.KiAllosteric), nullableFloat(r.HillCoefficient),
			nullableStringValue(r.Site), nullableStringValue(r.SourceDatabase),
			nullableStringValue(r.LiteratureReference),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting regulatory interaction %s: %w", r.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing regulatory write: %w", err)
	}
	return written, nil
}

// KineticParamsFor returns the parameter rows attached to a reaction, ordered by id.
func (d *DB) KineticParamsFor(ctx context.Context, reactionID string) ([]model.KineticParam, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+selectKineticFields+` FROM kinetic_parameters WHERE reaction_id = ? ORDER BY id`, reactionID)
	if err != nil {
		return nil, fmt.Errorf("querying kinetic parameters: %w", err)
	}
	defer rows.Close()
	return scanKineticParams(rows)
}

// AllKineticParams returns every kinetic parameter row, ordered by id.
func (d *DB) AllKineticParams(ctx context.Context) ([]model.KineticParam, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectKineticFields+` FROM kinetic_parameters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying kinetic parameters: %w", err)
	}
	defer rows.Close()
	return scanKineticParams(rows)
}

// RegulatoryFor returns the regulatory interactions acting on any of the enzymes, ordered by id.
func (d *DB) RegulatoryFor(ctx context.Context, enzymeIDs []string) ([]model.RegulatoryInteraction, error) {
	if len(enzymeIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(enzymeIDs))
	for i, id := range enzymeIDs {
		args[i] = id
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+selectRegulatoryFields+` FROM regulatory_interactions
		WHERE enzyme_id IN (`+placeholders(len(enzymeIDs))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying regulatory interactions: %w", err)
	}
	defer rows.Close()

	var out []model.RegulatoryInteraction
	for rows.Next() {
		var r model.RegulatoryInteraction
		var ki, hill sql.NullFloat64
		var site, source, lit sql.NullString
		if err := rows.Scan(&r.ID, &r.EnzymeID, &r.CompoundID, &r.InteractionType,
			&ki, &hill, &site, &source, &lit); err != nil {
			return nil, err
		}
		r.KiAllosteric = floatPtr(ki)
		r.HillCoefficient = floatPtr(hill)
		r.Site = site.String
		r.SourceDatabase = source.String
		r.LiteratureReference = lit.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanKineticParams(rows *sql.Rows) ([]model.KineticParam, error) {
	var out []model.KineticParam
	for rows.Next() {
		var p model.KineticParam
		var enzyme, reaction, substrate, source, lit, organism, tissue sql.NullString
		var km, kcat, vmax, ki, hill, dg, keq, ph, temp, ionic, conf, merr sql.NullFloat64
		err := rows.Scan(&p.ID, &enzyme, &reaction, &substrate,
			&km, &kcat, &vmax, &ki, &hill, &dg, &keq,
			&ph, &temp, &ionic,
			&source, &lit, &organism, &tissue,
			&conf, &merr)
		if err != nil {
			return nil, err
		}
		p.EnzymeID = enzyme.String
		p.ReactionID = reaction.String
		p.SubstrateID = substrate.String
		p.Km, p.Kcat, p.Vmax, p.Ki = floatPtr(km), floatPtr(kcat), floatPtr(vmax), floatPtr(ki)
		p.HillCoefficient, p.DeltaGPrime, p.EquilibriumConstant = floatPtr(hill), floatPtr(dg), floatPtr(keq)
		p.PH, p.TemperatureCelsius, p.IonicStrength = floatPtr(ph), floatPtr(temp), floatPtr(ionic)
		p.SourceDatabase = source.String
		p.LiteratureReference = lit.String
		p.Organism = organism.String
		p.Tissue = tissue.String
		p.ConfidenceScore, p.MeasurementError = floatPtr(conf), floatPtr(merr)
		out = append(out, p)
	}
	return out, rows.Err()
}
