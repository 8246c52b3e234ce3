package sqlinline

const QSelectSubscriptionByUser = `--sql 6504b778-8636-4488-92e9-14b87977c948
select
  user_id,
  subscription_id,
  order_id,
  product_id,
  product_name,
  variant_id,
  variant_name,
  status,
  renews_at,
  ends_at,
  trial_ends_at,
  url,
  updated_at
from subscriptions
where user_id = $1::uuid
limit 1;
`

const QUpsertSubscription = `--sql 955f7365-b88c-4a93-9367-8783b472b47e
insert into subscriptions(
  user_id,
  subscription_id,
  order_id,
  product_id,
  product_name,
  variant_id,
  variant_name,
  status,
  renews_at,
  ends_at,
  trial_ends_at,
  url,
  updated_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::timestamptz,
  $10::timestamptz,
  $11::timestamptz,
  $12::text,
  now()
)
on conflict (user_id) do update set
  subscription_id = excluded.subscription_id,
  order_id = excluded.order_id,
  product_id = excluded.product_id,
  product_name = excluded.product_name,
  variant_id = excluded.variant_id,
  variant_name = excluded.variant_name,
  status = excluded.status,
  renews_at = excluded.renews_at,
  ends_at = excluded.ends_at,
  trial_ends_at = excluded.trial_ends_at,
  url = excluded.url,
  updated_at = now();
`

const QDeleteSubscription = `--sql 65f7b219-22a2-41b3-82a0-6cdcb19f66f8
delete from subscriptions
where user_id = $1::uuid;
`
