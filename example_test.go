package shardq_test

import (
	"context"
	"fmt"
	"log"

	"github.com/shardq/shardq"
	"github.com/shardq/shardq/model"
	"github.com/shardq/shardq/testutil"
)

func Example() {
	ctx := context.Background()

	cluster := testutil.MustCluster(2, 64)
	cluster.CreateSpace(testutil.AccountsSpace())

	router, err := shardq.New(cluster.Topo)
	if err != nil {
		log.Fatal(err)
	}

	for i := int64(1); i <= 4; i++ {
		if _, err := router.Insert(ctx, "accounts",
			model.Tuple{i, nil, fmt.Sprintf("acc-%d", i), i * 100}); err != nil {
			log.Fatal(err)
		}
	}

	rows, err := router.Select(ctx, "accounts",
		[]model.Condition{model.Ge("balance", int64(200))},
		shardq.WithFirst(2),
	)
	if err != nil {
		log.Fatal(err)
	}
	for _, row := range rows {
		fmt.Println(row[0], row[2])
	}
	// Output:
	// 2 acc-2
	// 3 acc-3
}
