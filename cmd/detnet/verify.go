package main

import (
	"context"
	"fmt"

	"github.com/sarchlab/detnet/datarecording"
	"github.com/sarchlab/detnet/simulation"
)

// verifyRecordings compares the delivery logs recorded by two runs and
// returns an error describing the first divergence.
func verifyRecordings(pathA, pathB string) error {
	rowsA, err := readDeliveries(pathA)
	if err != nil {
		return err
	}

	rowsB, err := readDeliveries(pathB)
	if err != nil {
		return err
	}

	if len(rowsA) != len(rowsB) {
		return fmt.Errorf("delivery counts differ: %d vs %d",
			len(rowsA), len(rowsB))
	}

	for i := range rowsA {
		if rowsA[i] != rowsB[i] {
			return fmt.Errorf("logs diverge at delivery %d: %+v vs %+v",
				i, rowsA[i], rowsB[i])
		}
	}

	return nil
}

func readDeliveries(path string) ([]simulation.DeliveryRow, error) {
	reader := datarecording.NewReader(path)
	defer reader.Close()

	reader.MapTable(simulation.DeliveryTable, simulation.DeliveryRow{})

	results, err := reader.Query(
		context.Background(),
		simulation.DeliveryTable,
		datarecording.QueryParams{OrderBy: "Seq ASC"},
	)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	rows := make([]simulation.DeliveryRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.(simulation.DeliveryRow))
	}

	return rows, nil
}
