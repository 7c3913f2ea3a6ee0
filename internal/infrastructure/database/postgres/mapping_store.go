package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/regioflow/internal/domain/geography"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

const selectMappings = `
SELECT country, region FROM geography_mappings ORDER BY country, rank`

// LoadMapping reads the country-to-region mapping table into a static
// in-memory mapper.  Rank order is the fallback preference order.
func LoadMapping(ctx context.Context, pool *pgxpool.Pool) (geography.StaticMapping, error) {
	rows, err := pool.Query(ctx, selectMappings)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "querying geography mappings")
	}
	defer rows.Close()

	mapping := geography.StaticMapping{}
	for rows.Next() {
		var country, region string
		if err := rows.Scan(&country, &region); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "scanning geography mapping")
		}
		mapping[country] = append(mapping[country], region)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDatabaseError, "iterating geography mappings")
	}
	return mapping, nil
}
