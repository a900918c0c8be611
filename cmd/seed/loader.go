package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"floodguard-be/internal/entity"
	"floodguard-be/pkg/protocol"
)

// mappedColumns are stored in dedicated fields; every other CSV column goes
// into Attributes.
var mappedColumns = map[string]struct{}{
	"ObjectId": {}, "ProjectID": {}, "ProjectComponentID": {}, "ContractID": {},
	"ProjectDescription": {}, "Contractor": {}, "ContractCost": {}, "ABC": {},
	"Region": {}, "Province": {}, "Municipality": {}, "Latitude": {}, "Longitude": {},
	"latitude": {}, "longitude": {}, "TypeofWork": {}, "InfraYear": {},
	"StartDate": {}, "CompletionDateActual": {},
}

// LoadResult is what a dataset file yields. Skipped holds one error per
// row that could not be used.
type LoadResult struct {
	Projects []*entity.Project
	Skipped  []error
}

// LoadCSV reads the dataset export. Numbers may carry thousands
// separators, dates may be ISO strings or epoch milliseconds, and
// contractors are upper-cased. Rows without any project id are skipped;
// repeated ids get the row number appended.
func LoadCSV(r io.Reader) (*LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty dataset")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimPrefix(strings.TrimSpace(header[i]), "\ufeff")
	}

	res := &LoadResult{}
	seen := map[string]bool{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		p, err := rowToProject(header, record)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if seen[p.ProjectId] {
			p.ProjectId = fmt.Sprintf("%s_%d", p.ProjectId, line)
		}
		seen[p.ProjectId] = true
		res.Projects = append(res.Projects, p)
	}
	return res, nil
}

func rowToProject(header, record []string) (*entity.Project, error) {
	raw := make(map[string]any, len(header))
	attrs := map[string]string{}
	for i, col := range header {
		if i >= len(record) {
			break
		}
		v := strings.TrimSpace(record[i])
		raw[col] = v
		if _, mapped := mappedColumns[col]; !mapped && v != "" {
			attrs[col] = v
		}
	}

	canon := protocol.NormalizeProject(raw)
	if canon.ID == "" {
		return nil, fmt.Errorf("no project id")
	}

	p := &entity.Project{
		ProjectId:            canon.ID,
		ContractId:           stringField(raw, "ContractID"),
		Description:          canon.Description,
		Contractor:           strings.ToUpper(canon.Contractor),
		ContractCost:         canon.ContractCost,
		ABC:                  canon.ABC,
		Region:               canon.Region,
		Province:             canon.Province,
		Municipality:         canon.Municipality,
		TypeOfWork:           canon.TypeOfWork,
		InfraYear:            canon.InfraYear,
		StartDate:            canon.StartDate,
		CompletionDateActual: canon.CompletionDateActual,
		Attributes:           attrs,
	}
	if id, err := strconv.Atoi(stringField(raw, "ObjectId")); err == nil {
		p.ObjectId = id
	}
	if canon.Placeable() {
		lat, lon := canon.Coordinate.Lat, canon.Coordinate.Lon
		p.Latitude, p.Longitude = &lat, &lon
	}
	p.Document = document(p)
	return p, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// document is the text embedded for semantic search.
func document(p *entity.Project) string {
	parts := []string{p.Description, p.Contractor, p.Municipality, p.Province, p.TypeOfWork}
	if p.InfraYear > 0 {
		parts = append(parts, strconv.Itoa(p.InfraYear))
	}
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
